package signup

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

type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) Signup(ctx context.Context, in auth.SignupInput) (models.Account, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(models.Account), args.Error(1)
}

func serve(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	return rec
}

func TestSignup_Success(t *testing.T) {
	registrar := &MockRegistrar{}
	mobile := "+15550001"

	registrar.On("Signup", mock.Anything, auth.SignupInput{
		Name: "Ada", Email: "ada@x.io", Username: "ada", Password: "pw1", Mobile: &mobile,
	}).Return(models.Account{ID: "acc-1", Name: "Ada", Email: "ada@x.io", Username: "ada", Mobile: &mobile}, nil)

	h := New(sl.NewDiscardLogger(), validator.New(), registrar)
	rec := serve(h, `{"name":"Ada","email":"ada@x.io","username":"ada","password":"pw1","mobile":"+15550001"}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, resp.StatusOK, body.Status)
	assert.Equal(t, "Signup successful. Please verify your email.", body.Message)
	assert.Equal(t, "acc-1", body.User.ID)
	assert.False(t, body.User.EmailVerified)
	assert.NotContains(t, rec.Body.String(), "token")

	registrar.AssertExpectations(t)
}

func TestSignup_Errors(t *testing.T) {
	valid := `{"name":"Ada","email":"ada@x.io","username":"ada","password":"pw1"}`

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "email taken", body: valid, err: auth.ErrEmailExists, wantCode: http.StatusConflict, wantMsg: "Email already in use"},
		{name: "username taken", body: valid, err: auth.ErrUsernameExists, wantCode: http.StatusConflict, wantMsg: "Username already in use"},
		{name: "mobile taken", body: valid, err: auth.ErrMobileExists, wantCode: http.StatusConflict, wantMsg: "Mobile already in use"},
		{name: "storage failure", body: valid, err: errors.New("db down"), wantCode: http.StatusInternalServerError, wantMsg: "Internal error"},
		{name: "bad email", body: `{"name":"Ada","email":"nope","username":"ada","password":"pw1"}`, wantCode: http.StatusBadRequest},
		{name: "broken json", body: `{"name":`, wantCode: http.StatusBadRequest, wantMsg: "Failed to decode request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registrar := &MockRegistrar{}
			if tt.err != nil {
				registrar.On("Signup", mock.Anything, mock.Anything).Return(models.Account{}, tt.err)
			}

			rec := serve(New(sl.NewDiscardLogger(), validator.New(), registrar), tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			var body resp.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, resp.StatusError, body.Status)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Error)
			}

			if tt.err == nil {
				registrar.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
			}
		})
	}
}
