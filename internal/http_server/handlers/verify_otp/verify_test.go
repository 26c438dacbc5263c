package verifyOtp

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

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyOtp(ctx context.Context, identifier, code string) error {
	return m.Called(ctx, identifier, code).Error(0)
}

func TestVerifyOtp(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		called   bool
		wantCode int
		wantBody resp.Response
	}{
		{
			name:     "verified",
			body:     `{"identifier":"ada@x.io","otp":"123456"}`,
			called:   true,
			wantCode: http.StatusOK,
			wantBody: resp.OKWithMessage("Verified successfully"),
		},
		{
			name:     "wrong or expired",
			body:     `{"identifier":"ada@x.io","otp":"123456"}`,
			err:      auth.ErrInvalidOtp,
			called:   true,
			wantCode: http.StatusBadRequest,
			wantBody: resp.Error("Invalid or expired OTP"),
		},
		{
			name:     "internal",
			body:     `{"identifier":"ada@x.io","otp":"123456"}`,
			err:      errors.New("redis down"),
			called:   true,
			wantCode: http.StatusInternalServerError,
			wantBody: resp.Error("Internal error"),
		},
		{
			name:     "code is not six digits",
			body:     `{"identifier":"ada@x.io","otp":"12ab"}`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &MockVerifier{}
			v.On("VerifyOtp", mock.Anything, "ada@x.io", "123456").Return(tt.err)

			req := httptest.NewRequest(http.MethodPost, "/auth/verify-otp", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			New(sl.NewDiscardLogger(), validator.New(), v).ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)

			var body resp.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

			if tt.called {
				assert.Equal(t, tt.wantBody, body)
				v.AssertExpectations(t)
			} else {
				assert.Equal(t, resp.StatusError, body.Status)
				v.AssertNotCalled(t, "VerifyOtp", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}
