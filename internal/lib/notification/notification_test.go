package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	msgs []models.Message
	err  error
}

func (f *fakePublisher) SendMessage(_ context.Context, msg models.Message) error {
	if f.err != nil {
		return f.err
	}

	f.msgs = append(f.msgs, msg)

	return nil
}

func TestSendCode_Email(t *testing.T) {
	pub := &fakePublisher{}
	g := New(sl.NewDiscardLogger(), pub, 5*time.Minute)

	g.SendCode(context.Background(), models.ChannelEmail, "ada@x.io", "123456")

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "ada@x.io", msg.Email)
	assert.Equal(t, "Verification code", msg.Subject)
	assert.Contains(t, msg.Body, "123456")
	assert.Contains(t, msg.Body, "5 minutes")
	assert.Equal(t, PurposeCode, msg.Purpose)
}

func TestSendCode_MobileIsNotQueued(t *testing.T) {
	pub := &fakePublisher{}
	g := New(sl.NewDiscardLogger(), pub, 5*time.Minute)

	g.SendCode(context.Background(), models.ChannelMobile, "+15550001", "123456")
	g.SendCode(context.Background(), models.Channel("pigeon"), "roof", "123456")

	assert.Empty(t, pub.msgs)
}

func TestPublishFailuresAreSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	g := New(sl.NewDiscardLogger(), pub, time.Minute)

	assert.NotPanics(t, func() {
		g.SendCode(context.Background(), models.ChannelEmail, "ada@x.io", "123456")
		g.SendMessage(context.Background(), "ada@x.io", "subject", "body")
	})
}

func TestSendMessage(t *testing.T) {
	pub := &fakePublisher{}
	g := New(sl.NewDiscardLogger(), pub, time.Minute)

	g.SendMessage(context.Background(), "ada@x.io", "Password Changed Successfully", "body")

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, models.Message{
		Email:   "ada@x.io",
		Subject: "Password Changed Successfully",
		Body:    "body",
		Purpose: PurposeMessage,
	}, pub.msgs[0])
}
