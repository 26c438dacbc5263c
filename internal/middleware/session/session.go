package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	resp "identity_service/internal/lib/api/response"
	"identity_service/internal/lib/jwt"
	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type ctxKey struct{}

type TokenParser interface {
	Parse(token string) (jwt.Claims, error)
}

// New admits requests carrying an unexpired session token as "Authorization: Bearer <token>"
// and stores the token subject in the request context.
func New(log *slog.Logger, parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.session"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				unauthorized(w, r)
				return
			}

			claims, err := parser.Parse(strings.TrimSpace(token))
			if err != nil {
				log.Info("session token rejected", sl.Err(err))
				unauthorized(w, r)
				return
			}

			if claims.Expired || claims.Purpose != models.PurposeSession {
				log.Info("session token rejected",
					slog.Bool("expired", claims.Expired),
					slog.String("purpose", string(claims.Purpose)),
				)
				unauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, claims.Subject)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the session subject stored by New.
func Subject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(ctxKey{}).(string)
	return subject, ok && subject != ""
}

// WithSubject is used by tests to skip token parsing.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKey{}, subject)
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, resp.Error("Unauthorized"))
}
