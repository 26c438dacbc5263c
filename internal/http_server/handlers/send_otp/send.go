package sendOtp

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

type Request struct {
	Channel string `json:"channel" validate:"required,oneof=email mobile"`
}

type Response struct {
	resp.Response
}

type CodeRequester interface {
	RequestOtp(ctx context.Context, subject string, channel models.Channel) error
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	requester CodeRequester,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sendOtp.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		subject, ok := session.Subject(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Unauthorized"))

			return
		}

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

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := requester.RequestOtp(ctx, subject, models.Channel(req.Channel)); err != nil {
			switch {
			case errors.Is(err, auth.ErrUnauthorized):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Unauthorized"))
			case errors.Is(err, auth.ErrNoMobile):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("No mobile number on account"))
			default:
				log.Error("failed to send otp", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OKWithMessage("OTP sent successfully"),
		})
	}
}
