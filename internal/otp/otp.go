// Package otp issues and checks single-use numeric codes, one live code per identifier.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/models"
)

const (
	DefaultTTL = 5 * time.Minute

	codeMin   = 100000
	codeRange = 900000
)

type Store interface {
	ReplaceCode(ctx context.Context, otp models.OneTimeCode, ttl time.Duration) error
	ConsumeCode(ctx context.Context, identifier, code string, now time.Time) (bool, error)
}

type Notifier interface {
	SendCode(ctx context.Context, channel models.Channel, address, code string)
}

type Recorder interface {
	CodeIssued(channel models.Channel)
	CodeVerified(ok bool)
}

type Ledger struct {
	log      *slog.Logger
	store    Store
	notifier Notifier
	recorder Recorder
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

func New(log *slog.Logger, store Store, notifier Notifier, recorder Recorder, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Ledger{
		log:      log,
		store:    store,
		notifier: notifier,
		recorder: recorder,
		ttl:      ttl,
		now:      time.Now,
		generate: GenerateCode,
	}
}

// WithClock overrides the clock, used in tests.
func (l *Ledger) WithClock(clock func() time.Time) {
	if clock != nil {
		l.now = clock
	}
}

// WithGenerator overrides the code source, used in tests.
func (l *Ledger) WithGenerator(gen func() (string, error)) {
	if gen != nil {
		l.generate = gen
	}
}

// Issue replaces any code held for identifier with a fresh one and dispatches it.
// The code is returned for internal use only and must never reach an unauthenticated caller.
func (l *Ledger) Issue(ctx context.Context, identifier string, channel models.Channel) (string, error) {
	const op = "otp.Issue"

	log := l.log.With(
		slog.String("op", op),
		slog.String("channel", string(channel)),
	)

	code, err := l.generate()
	if err != nil {
		log.Error("failed to generate code", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	otp := models.OneTimeCode{
		Identifier: identifier,
		Code:       code,
		ExpiresAt:  l.now().Add(l.ttl),
	}

	if err := l.store.ReplaceCode(ctx, otp, l.ttl); err != nil {
		log.Error("failed to store code", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	l.notifier.SendCode(ctx, channel, identifier, code)

	if l.recorder != nil {
		l.recorder.CodeIssued(channel)
	}

	log.Info("code issued")

	return code, nil
}

// Verify consumes the code when it matches and has not expired. Wrong, missing and
// expired codes all report false.
func (l *Ledger) Verify(ctx context.Context, identifier, code string) (bool, error) {
	const op = "otp.Verify"

	log := l.log.With(slog.String("op", op))

	ok, err := l.store.ConsumeCode(ctx, identifier, code, l.now())
	if err != nil {
		log.Error("failed to consume code", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if l.recorder != nil {
		l.recorder.CodeVerified(ok)
	}

	if !ok {
		log.Info("code rejected")
		return false, nil
	}

	log.Info("code accepted")

	return true, nil
}

// GenerateCode returns a uniformly random code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}
