package verifyOtp

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

// Request.Identifier is the email or mobile number the code was sent to.
type Request struct {
	Identifier string `json:"identifier" validate:"required"`
	Code       string `json:"otp" validate:"required,numeric,len=6"`
}

type Response struct {
	resp.Response
}

type CodeVerifier interface {
	VerifyOtp(ctx context.Context, identifier, code string) error
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	verifier CodeVerifier,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verifyOtp.New"

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

		if err := verifier.VerifyOtp(ctx, req.Identifier, req.Code); err != nil {
			if errors.Is(err, auth.ErrInvalidOtp) {
				log.Info("otp rejected")

				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Invalid or expired OTP"))

				return
			}

			log.Error("failed to verify otp", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("identifier verified successfully")

		render.JSON(w, r, Response{
			Response: resp.OKWithMessage("Verified successfully"),
		})
	}
}
