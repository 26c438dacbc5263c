package forgotPassword

import (
	"context"
	"encoding/json"
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

type MockStarter struct {
	mock.Mock
}

func (m *MockStarter) ForgotPassword(ctx context.Context, identifier string) error {
	return m.Called(ctx, identifier).Error(0)
}

func TestForgotPassword(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody resp.Response
	}{
		{name: "sent", wantCode: http.StatusOK, wantBody: resp.OKWithMessage("OTP sent successfully")},
		{name: "unknown", err: auth.ErrNotFound, wantCode: http.StatusNotFound, wantBody: resp.Error("User not found")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &MockStarter{}
			s.On("ForgotPassword", mock.Anything, "ada").Return(tt.err)

			req := httptest.NewRequest(http.MethodPost, "/auth/forgot-password", strings.NewReader(`{"identifier":"ada"}`))
			rec := httptest.NewRecorder()

			New(sl.NewDiscardLogger(), validator.New(), s).ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)

			var body resp.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}
