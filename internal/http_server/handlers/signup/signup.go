package signup

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"identity_service/internal/auth"
	resp "identity_service/internal/lib/api/response"
	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Username string  `json:"username" validate:"required"`
	Pass     string  `json:"password" validate:"required"`
	Mobile   *string `json:"mobile,omitempty"`
}

type Response struct {
	resp.Response
	User models.AccountView `json:"user"`
}

type AccountRegistrar interface {
	Signup(ctx context.Context, in auth.SignupInput) (models.Account, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	registrar AccountRegistrar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.signup.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Info("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		acc, err := registrar.Signup(ctx, auth.SignupInput{
			Name:     req.Name,
			Email:    req.Email,
			Username: req.Username,
			Password: req.Pass,
			Mobile:   req.Mobile,
		})
		if err != nil {
			switch {
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
				log.Error("failed to register account", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("Account registered", slog.String("uid", acc.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response: resp.OKWithMessage(auth.SignupPendingMessage),
			User:     acc.View(),
		})
	}
}
