package mailsender

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}

	f.sent = append(f.sent, m...)

	return nil
}

func TestHandle(t *testing.T) {
	sender := &fakeSender{}
	m := NewWithSender("no-reply@example.com", sender)

	err := m.Handle([]byte(`{"to":"ada@x.io","subject":"Verification code","body":"Your code is 123456","purpose":"otp"}`))
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"ada@x.io"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"no-reply@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"Verification code"}, msg.GetHeader("Subject"))
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		sendErr error
	}{
		{name: "broken json", body: `{"to":`},
		{name: "no recipient", body: `{"subject":"s","body":"b"}`},
		{name: "smtp failure", body: `{"to":"ada@x.io","subject":"s","body":"b"}`, sendErr: errors.New("dial tcp: refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWithSender("no-reply@example.com", &fakeSender{err: tt.sendErr})

			assert.Error(t, m.Handle([]byte(tt.body)))
		})
	}
}

func TestNew_FromDefaultsToUsername(t *testing.T) {
	m := New("smtp.example.com", 587, "mailer@example.com", "secret", "")

	assert.Equal(t, "mailer@example.com", m.From)
}
