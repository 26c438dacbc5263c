package jwt

import (
	"errors"
	"fmt"
	"time"

	"identity_service/internal/models"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	jwtlib.RegisteredClaims
	Purpose models.TokenPurpose `json:"purpose"`
}

// Claims is what a verified token tells the caller. Expiry is reported, not enforced.
type Claims struct {
	Subject   string
	Purpose   models.TokenPurpose
	ExpiresAt time.Time
	Expired   bool
}

type Issuer struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func New(secret string, sessionTTL, resetTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
	}
}

// WithClock overrides the clock, used in tests.
func (i *Issuer) WithClock(clock func() time.Time) {
	if clock != nil {
		i.now = clock
	}
}

func (i *Issuer) NewSessionToken(subject string) (string, error) {
	return i.newToken(subject, models.PurposeSession, i.sessionTTL)
}

func (i *Issuer) NewResetToken(subject string) (string, error) {
	return i.newToken(subject, models.PurposePasswordReset, i.resetTTL)
}

// Parse verifies the signature and returns the claims. An expired token is still
// returned with Expired set; callers must check both Expired and Purpose.
func (i *Issuer) Parse(tokenStr string) (Claims, error) {
	const op = "jwt.Parse"

	claims := &tokenClaims{}

	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if !token.Valid {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%s: %w: missing sub or exp", op, ErrInvalidToken)
	}

	exp := claims.ExpiresAt.Time

	return Claims{
		Subject:   claims.Subject,
		Purpose:   claims.Purpose,
		ExpiresAt: exp,
		Expired:   i.now().After(exp),
	}, nil
}

func (i *Issuer) newToken(subject string, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	const op = "jwt.newToken"

	now := i.now()

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}
