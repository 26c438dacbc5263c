package forgotPassword

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"identity_service/internal/auth"
	resp "identity_service/internal/lib/api/response"
	sl "identity_service/internal/lib/logger/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Identifier string `json:"identifier" validate:"required"`
}

type Response struct {
	resp.Response
}

type ResetStarter interface {
	ForgotPassword(ctx context.Context, identifier string) error
}

// New godoc
// @Summary      Start a password reset
// @Description  Sends a one-time code to the account email. The identifier may be the
// @Description  email or the username; the code always goes to the email.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        identifier  body  object{identifier=string}  true  "Email or username"
// @Success      200  {object}  object{status=string,message=string}  "Code sent"
// @Failure      400  {object}  object{status=string,error=string}  "Validation error"
// @Failure      404  {object}  object{status=string,error=string}  "User not found"
// @Failure      500  {object}  object{status=string,error=string}  "Internal error"
// @Router       /auth/forgot-password [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	starter ResetStarter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.forgotPassword.New"

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

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Info("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := starter.ForgotPassword(ctx, req.Identifier); err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				log.Info("User not found")

				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))

				return
			}

			log.Error("failed to start password reset", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OKWithMessage("OTP sent successfully"),
		})
	}
}
