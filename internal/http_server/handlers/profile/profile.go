package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"identity_service/internal/auth"
	resp "identity_service/internal/lib/api/response"
	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/middleware/session"
	"identity_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// UpdateRequest fields are optional. "mobile": "" removes the number.
type UpdateRequest struct {
	Name            string  `json:"name"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Username        string  `json:"username"`
	Mobile          *string `json:"mobile,omitempty"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
}

type DeleteRequest struct {
	Pass string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
	User  *models.AccountView `json:"user,omitempty"`
	Token string              `json:"token,omitempty"`
}

type Manager interface {
	Profile(ctx context.Context, subject string) (models.Account, error)
	UpdateProfile(ctx context.Context, subject string, upd auth.ProfileUpdate) (models.Account, string, error)
	DeleteAccount(ctx context.Context, subject, password string) error
}

func NewGet(log *slog.Logger, manager Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.profile.NewGet"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		subject, ok := session.Subject(r.Context())
		if !ok {
			writeError(w, r, log, auth.ErrUnauthorized)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		acc, err := manager.Profile(ctx, subject)
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		view := acc.View()

		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     &view,
		})
	}
}

func NewUpdate(log *slog.Logger, validate *validator.Validate, manager Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.profile.NewUpdate"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		subject, ok := session.Subject(r.Context())
		if !ok {
			writeError(w, r, log, auth.ErrUnauthorized)
			return
		}

		var req UpdateRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		acc, token, err := manager.UpdateProfile(ctx, subject, auth.ProfileUpdate{
			Name:            req.Name,
			Email:           req.Email,
			Username:        req.Username,
			Mobile:          req.Mobile,
			CurrentPassword: req.CurrentPassword,
			NewPassword:     req.NewPassword,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		view := acc.View()

		render.JSON(w, r, Response{
			Response: resp.OKWithMessage("Profile updated"),
			User:     &view,
			Token:    token,
		})
	}
}

func NewDelete(log *slog.Logger, validate *validator.Validate, manager Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.profile.NewDelete"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		subject, ok := session.Subject(r.Context())
		if !ok {
			writeError(w, r, log, auth.ErrUnauthorized)
			return
		}

		var req DeleteRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := manager.DeleteAccount(ctx, subject, req.Pass); err != nil {
			writeError(w, r, log, err)
			return
		}

		log.Info("Account deleted")

		render.JSON(w, r, Response{
			Response: resp.OKWithMessage("Account deleted"),
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, resp.Error("Unauthorized"))
	case errors.Is(err, auth.ErrInvalidCredentials):
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, resp.Error("Invalid credentials"))
	case errors.Is(err, auth.ErrEmailExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("Email already in use"))
	case errors.Is(err, auth.ErrUsernameExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("Username already in use"))
	case errors.Is(err, auth.ErrMobileExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("Mobile already in use"))
	case errors.Is(err, auth.ErrConflict):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("Account already exists"))
	default:
		log.Error("profile request failed", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("Internal error"))
	}
}
