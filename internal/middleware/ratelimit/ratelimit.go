package rateLimit

import (
	"net/http"
	"time"

	httprate "github.com/go-chi/httprate"
)

func Signup() func(http.Handler) http.Handler {
	return limitByIP(5, time.Hour)
}

func Login() func(http.Handler) http.Handler {
	return limitByIP(10, 5*time.Minute)
}

// SendOtp covers every route that dispatches a code: resend, send and forgot-password.
func SendOtp() func(http.Handler) http.Handler {
	return limitByIP(3, 10*time.Minute)
}

// VerifyOtp covers both code-checking routes.
func VerifyOtp() func(http.Handler) http.Handler {
	return limitByIP(10, 10*time.Minute)
}

func ResetPassword() func(http.Handler) http.Handler {
	return limitByIP(5, 15*time.Minute)
}

func Profile() func(http.Handler) http.Handler {
	return limitByIP(30, 10*time.Minute)
}

func limitByIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.LimitByIP(limit, window)
}
