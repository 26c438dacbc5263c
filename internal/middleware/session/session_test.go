package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"identity_service/internal/lib/jwt"
	sl "identity_service/internal/lib/logger/sl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := jwt.New("secret", time.Hour, 15*time.Minute)
	issuer.WithClock(func() time.Time { return now })

	sessionToken, err := issuer.NewSessionToken("ada@x.io")
	require.NoError(t, err)
	resetToken, err := issuer.NewResetToken("ada@x.io")
	require.NoError(t, err)

	stale := jwt.New("secret", time.Minute, time.Minute)
	stale.WithClock(func() time.Time { return now.Add(-time.Hour) })
	expiredToken, err := stale.NewSessionToken("ada@x.io")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{name: "session token", header: "Bearer " + sessionToken, wantCode: http.StatusOK},
		{name: "no header", wantCode: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantCode: http.StatusUnauthorized},
		{name: "reset token", header: "Bearer " + resetToken, wantCode: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expiredToken, wantCode: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer garbage", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSubject string

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSubject, _ = Subject(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			New(sl.NewDiscardLogger(), issuer)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "ada@x.io", gotSubject)
			} else {
				assert.Empty(t, gotSubject)
			}
		})
	}
}
