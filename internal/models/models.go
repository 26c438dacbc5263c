package models

import "time"

type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelMobile Channel = "mobile"
)

type TokenPurpose string

const (
	PurposeSession       TokenPurpose = "session"
	PurposePasswordReset TokenPurpose = "password_reset"
)

type Account struct {
	ID             string
	Name           string
	Email          string
	Username       string
	Mobile         *string
	PassHash       []byte
	EmailVerified  bool
	MobileVerified bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasMobile reports whether a non-empty mobile number is attached.
func (a *Account) HasMobile() bool {
	return a.Mobile != nil && *a.Mobile != ""
}

type OneTimeCode struct {
	Identifier string
	Code       string
	ExpiresAt  time.Time
}

// Message is the payload published to the notification queue.
type Message struct {
	Email   string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Purpose string `json:"purpose"`
}

// AccountView is the public projection of an Account.
type AccountView struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Username       string  `json:"username"`
	Mobile         *string `json:"mobile,omitempty"`
	EmailVerified  bool    `json:"email_verified"`
	MobileVerified bool    `json:"mobile_verified"`
	CreatedAt      string  `json:"created_at"`
}

func (a *Account) View() AccountView {
	return AccountView{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		Username:       a.Username,
		Mobile:         a.Mobile,
		EmailVerified:  a.EmailVerified,
		MobileVerified: a.MobileVerified,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
