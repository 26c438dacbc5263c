package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"identity_service/internal/auth"
	resp "identity_service/internal/lib/api/response"
	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, identifier, password string) (string, models.Account, error) {
	args := m.Called(ctx, identifier, password)
	return args.String(0), args.Get(1).(models.Account), args.Error(2)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		err      error
		wantCode int
	}{
		{name: "ok", token: "session-token", wantCode: http.StatusOK},
		{name: "bad credentials", err: auth.ErrInvalidCredentials, wantCode: http.StatusUnauthorized},
		{name: "internal", err: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &MockAuthenticator{}
			a.On("Login", mock.Anything, "ada", "pw1").
				Return(tt.token, models.Account{ID: "acc-1", Email: "ada@x.io"}, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/auth/login",
				strings.NewReader(`{"identifier":"ada","password":"pw1"}`))
			rec := httptest.NewRecorder()

			New(sl.NewDiscardLogger(), validator.New(), a).ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)

			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

			if tt.err == nil {
				assert.Equal(t, resp.StatusOK, body.Status)
				assert.Equal(t, "session-token", body.Token)
				assert.Equal(t, "ada@x.io", body.User.Email)
				return
			}

			assert.Equal(t, resp.StatusError, body.Status)
			assert.Empty(t, body.Token)
		})
	}
}

func TestLogin_MissingPassword(t *testing.T) {
	a := &MockAuthenticator{}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":"ada"}`))
	rec := httptest.NewRecorder()

	New(sl.NewDiscardLogger(), validator.New(), a).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	a.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}
