package resendOtp

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
	Email string `json:"email" validate:"required,email"`
}

type Response struct {
	resp.Response
}

type CodeResender interface {
	ResendOtp(ctx context.Context, email string) error
}

// New godoc
// @Summary      Resend the email verification code
// @Description  Issues a fresh code to an unverified account email. Any earlier code
// @Description  for the same email stops working.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        email  body  object{email=string}  true  "Account email"  example({"email": "user@example.com"})
// @Success      200  {object}  object{status=string,message=string}  "Code sent"
// @Failure      400  {object}  object{status=string,error=string}  "Validation error or email already verified"
// @Failure      404  {object}  object{status=string,error=string}  "User not found"
// @Failure      500  {object}  object{status=string,error=string}  "Internal error"
// @Router       /auth/resend-otp [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	resender CodeResender,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resendOtp.New"

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

		if err := resender.ResendOtp(ctx, req.Email); err != nil {
			switch {
			case errors.Is(err, auth.ErrNotFound):
				log.Info("User not found")

				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))
			case errors.Is(err, auth.ErrAlreadyVerified):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Email already verified"))
			default:
				log.Error("failed to resend otp", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("Otp successfully resent")

		render.JSON(w, r, Response{
			Response: resp.OKWithMessage("OTP resent successfully"),
		})
	}
}
