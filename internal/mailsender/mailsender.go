package mailsender

import (
	"encoding/json"
	"fmt"

	"identity_service/internal/models"

	"gopkg.in/gomail.v2"
)

type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	From   string
	sender Sender
}

func New(host string, port int, username, password, from string) *Mailer {
	if from == "" {
		from = username
	}

	return &Mailer{
		From:   from,
		sender: gomail.NewDialer(host, port, username, password),
	}
}

// NewWithSender builds a Mailer around any sender, used in tests.
func NewWithSender(from string, sender Sender) *Mailer {
	return &Mailer{From: from, sender: sender}
}

func (m *Mailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("To", to)
	msg.SetHeader("From", m.From)
	msg.SetHeader("Subject", subject)

	msg.SetBody("text/plain", body)

	return m.sender.DialAndSend(msg)
}

// Handle decodes a queued notification and sends it.
func (m *Mailer) Handle(body []byte) error {
	const op = "mailsender.Handle"

	var msg models.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%s: failed to unmarshal message: %w", op, err)
	}

	if msg.Email == "" {
		return fmt.Errorf("%s: message has no recipient", op)
	}

	if err := m.Send(msg.Email, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
