package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"identity_service/internal/lib/jwt"
	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/models"
	"identity_service/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

const (
	SignupPendingMessage = "Signup successful. Please verify your email."

	passwordChangedSubject = "Password Changed Successfully"
	passwordChangedBody    = "Your password has been reset successfully. " +
		"If this wasn't you, contact support immediately."
)

var (
	ErrConflict           = errors.New("conflict")
	ErrEmailExists        = fmt.Errorf("email already in use: %w", ErrConflict)
	ErrUsernameExists     = fmt.Errorf("username already in use: %w", ErrConflict)
	ErrMobileExists       = fmt.Errorf("mobile already in use: %w", ErrConflict)
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOtp         = errors.New("invalid or expired otp")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInvalidToken       = errors.New("invalid or expired reset token")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNoMobile           = errors.New("no mobile number on account")
)

type AccountSaver interface {
	SaveAccount(ctx context.Context, acc models.Account) (models.Account, error)
	UpdateAccount(ctx context.Context, acc models.Account) error
	DeleteAccount(ctx context.Context, id string) error
}

type AccountProvider interface {
	AccountByEmail(ctx context.Context, email string) (models.Account, error)
	AccountByUsername(ctx context.Context, username string) (models.Account, error)
	AccountByMobile(ctx context.Context, mobile string) (models.Account, error)
}

type CategorySeeder interface {
	SeedDefaultCategories(ctx context.Context, accountID string) error
}

type CodeLedger interface {
	Issue(ctx context.Context, identifier string, channel models.Channel) (string, error)
	Verify(ctx context.Context, identifier, code string) (bool, error)
}

type TokenIssuer interface {
	NewSessionToken(subject string) (string, error)
	NewResetToken(subject string) (string, error)
	Parse(token string) (jwt.Claims, error)
}

type Notifier interface {
	SendMessage(ctx context.Context, address, subject, body string)
}

type Auth struct {
	log         *slog.Logger
	accSaver    AccountSaver
	accProvider AccountProvider
	seeder      CategorySeeder
	codes       CodeLedger
	tokens      TokenIssuer
	notifier    Notifier
	hashCost    int
}

type SignupInput struct {
	Name     string
	Email    string
	Username string
	Password string
	Mobile   *string
}

// ProfileUpdate carries optional changes; nil or empty fields are left untouched.
// An empty, non-nil Mobile removes the number.
type ProfileUpdate struct {
	Name            string
	Email           string
	Username        string
	Mobile          *string
	CurrentPassword string
	NewPassword     string
}

func New(
	log *slog.Logger,
	accSaver AccountSaver,
	accProvider AccountProvider,
	seeder CategorySeeder,
	codes CodeLedger,
	tokens TokenIssuer,
	notifier Notifier,
) *Auth {
	return &Auth{
		log:         log,
		accSaver:    accSaver,
		accProvider: accProvider,
		seeder:      seeder,
		codes:       codes,
		tokens:      tokens,
		notifier:    notifier,
		hashCost:    bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost, used in tests.
func (a *Auth) WithHashCost(cost int) {
	a.hashCost = cost
}

// Signup creates an unverified account and sends an OTP to its email.
func (a *Auth) Signup(ctx context.Context, in SignupInput) (models.Account, error) {
	const op = "auth.Signup"

	log := a.log.With(slog.String("op", op))

	log.Info("registering new account")

	if in.Mobile != nil && *in.Mobile == "" {
		in.Mobile = nil
	}

	if err := a.ensureFree(ctx, in.Email, in.Username, in.Mobile); err != nil {
		if !errors.Is(err, ErrConflict) {
			log.Error("failed to check uniqueness", sl.Err(err))
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.hashCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	acc, err := a.accSaver.SaveAccount(ctx, models.Account{
		Name:          in.Name,
		Email:         in.Email,
		Username:      in.Username,
		Mobile:        in.Mobile,
		PassHash:      passHash,
		EmailVerified: false,
	})
	if err != nil {
		if conflict := conflictErr(err); conflict != nil {
			log.Warn("account already exists", sl.Err(err))
			return models.Account{}, fmt.Errorf("%s: %w", op, conflict)
		}

		log.Error("failed to save account", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.seeder.SeedDefaultCategories(ctx, acc.ID); err != nil {
		log.Error("failed to seed default categories", sl.Err(err))
	}

	if _, err := a.codes.Issue(ctx, acc.Email, models.ChannelEmail); err != nil {
		log.Error("failed to issue signup otp", sl.Err(err))
	}

	log.Info("account registered", slog.String("uid", acc.ID))

	return acc, nil
}

// Login issues a session token. Verification state does not gate login.
func (a *Auth) Login(ctx context.Context, identifier, password string) (string, models.Account, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	acc, err := a.resolveLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info("account not found")
			return "", models.Account{}, ErrInvalidCredentials
		}

		log.Error("failed to get account", sl.Err(err))
		return "", models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(acc.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", slog.String("uid", acc.ID))
		return "", models.Account{}, ErrInvalidCredentials
	}

	token, err := a.tokens.NewSessionToken(acc.Email)
	if err != nil {
		log.Error("failed to generate session token", sl.Err(err))
		return "", models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account logged in", slog.String("uid", acc.ID))

	return token, acc, nil
}

func (a *Auth) ResendOtp(ctx context.Context, email string) error {
	const op = "auth.ResendOtp"

	log := a.log.With(slog.String("op", op))

	acc, err := a.accProvider.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Info("account not found")
			return ErrNotFound
		}

		log.Error("failed to get account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if acc.EmailVerified {
		return ErrAlreadyVerified
	}

	if _, err := a.codes.Issue(ctx, acc.Email, models.ChannelEmail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("otp resent", slog.String("uid", acc.ID))

	return nil
}

// VerifyOtp consumes the code and marks the channel the identifier belongs to as verified.
func (a *Auth) VerifyOtp(ctx context.Context, identifier, code string) error {
	const op = "auth.VerifyOtp"

	log := a.log.With(slog.String("op", op))

	ok, err := a.codes.Verify(ctx, identifier, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		return ErrInvalidOtp
	}

	acc, channel, err := a.resolveVerified(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("code accepted for unknown identifier")
			return ErrInvalidOtp
		}

		log.Error("failed to get account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	switch channel {
	case models.ChannelEmail:
		acc.EmailVerified = true
	case models.ChannelMobile:
		acc.MobileVerified = true
	}

	if err := a.accSaver.UpdateAccount(ctx, acc); err != nil {
		log.Error("failed to update verification flag", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account verified", slog.String("uid", acc.ID))

	return nil
}

// ForgotPassword always sends the code to the account email, whatever the identifier was.
func (a *Auth) ForgotPassword(ctx context.Context, identifier string) error {
	const op = "auth.ForgotPassword"

	log := a.log.With(slog.String("op", op))

	acc, err := a.resolveLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info("account not found")
			return ErrNotFound
		}

		log.Error("failed to get account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := a.codes.Issue(ctx, acc.Email, models.ChannelEmail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("reset otp sent", slog.String("uid", acc.ID))

	return nil
}

// VerifyResetOtp exchanges a forgot-password code for a reset token.
func (a *Auth) VerifyResetOtp(ctx context.Context, identifier, code string) (string, error) {
	const op = "auth.VerifyResetOtp"

	log := a.log.With(slog.String("op", op))

	acc, err := a.resolveLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}

		log.Error("failed to get account", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	ok, err := a.codes.Verify(ctx, acc.Email, code)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		return "", ErrInvalidOtp
	}

	token, err := a.tokens.NewResetToken(acc.Email)
	if err != nil {
		log.Error("failed to generate reset token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("reset token issued", slog.String("uid", acc.ID))

	return token, nil
}

// ResetPassword accepts only unexpired password_reset tokens. The token is not
// burned on use and stays valid until it expires.
func (a *Auth) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "auth.ResetPassword"

	log := a.log.With(slog.String("op", op))

	claims, err := a.tokens.Parse(token)
	if err != nil {
		log.Info("reset token rejected", sl.Err(err))
		return ErrInvalidToken
	}

	if claims.Expired || claims.Purpose != models.PurposePasswordReset {
		log.Info("reset token rejected",
			slog.Bool("expired", claims.Expired),
			slog.String("purpose", string(claims.Purpose)),
		)
		return ErrInvalidToken
	}

	acc, err := a.accProvider.AccountByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Info("reset token subject no longer exists")
			return ErrInvalidToken
		}

		log.Error("failed to get account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.hashCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	acc.PassHash = passHash

	if err := a.accSaver.UpdateAccount(ctx, acc); err != nil {
		log.Error("failed to save password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.notifier.SendMessage(ctx, acc.Email, passwordChangedSubject, passwordChangedBody)

	log.Info("password reset", slog.String("uid", acc.ID))

	return nil
}

// RequestOtp sends a code to one of the caller's own channels.
func (a *Auth) RequestOtp(ctx context.Context, subject string, channel models.Channel) error {
	const op = "auth.RequestOtp"

	acc, err := a.sessionAccount(ctx, subject)
	if err != nil {
		return err
	}

	address := acc.Email
	if channel == models.ChannelMobile {
		if !acc.HasMobile() {
			return ErrNoMobile
		}

		address = *acc.Mobile
	}

	if _, err := a.codes.Issue(ctx, address, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *Auth) Profile(ctx context.Context, subject string) (models.Account, error) {
	return a.sessionAccount(ctx, subject)
}

// UpdateProfile applies the changes. When the email changes, the old session subject
// stops resolving, so a fresh session token is returned; otherwise token is empty.
func (a *Auth) UpdateProfile(ctx context.Context, subject string, upd ProfileUpdate) (models.Account, string, error) {
	const op = "auth.UpdateProfile"

	log := a.log.With(slog.String("op", op))

	acc, err := a.sessionAccount(ctx, subject)
	if err != nil {
		return models.Account{}, "", err
	}

	if upd.Name != "" {
		acc.Name = upd.Name
	}

	emailChanged := upd.Email != "" && upd.Email != acc.Email
	if emailChanged {
		if err := a.ensureFree(ctx, upd.Email, "", nil); err != nil {
			return models.Account{}, "", fmt.Errorf("%s: %w", op, err)
		}

		acc.Email = upd.Email
		acc.EmailVerified = false
	}

	if upd.Username != "" && upd.Username != acc.Username {
		if err := a.ensureFree(ctx, "", upd.Username, nil); err != nil {
			return models.Account{}, "", fmt.Errorf("%s: %w", op, err)
		}

		acc.Username = upd.Username
	}

	if upd.Mobile != nil && (acc.Mobile == nil || *upd.Mobile != *acc.Mobile) {
		if *upd.Mobile == "" {
			acc.Mobile = nil
		} else {
			if err := a.ensureFree(ctx, "", "", upd.Mobile); err != nil {
				return models.Account{}, "", fmt.Errorf("%s: %w", op, err)
			}

			mobile := *upd.Mobile
			acc.Mobile = &mobile
		}

		acc.MobileVerified = false
	}

	if upd.NewPassword != "" {
		if upd.CurrentPassword == "" ||
			bcrypt.CompareHashAndPassword(acc.PassHash, []byte(upd.CurrentPassword)) != nil {
			return models.Account{}, "", ErrInvalidCredentials
		}

		passHash, err := bcrypt.GenerateFromPassword([]byte(upd.NewPassword), a.hashCost)
		if err != nil {
			log.Error("failed to generate password hash", sl.Err(err))
			return models.Account{}, "", fmt.Errorf("%s: %w", op, err)
		}

		acc.PassHash = passHash
	}

	if err := a.accSaver.UpdateAccount(ctx, acc); err != nil {
		if conflict := conflictErr(err); conflict != nil {
			return models.Account{}, "", fmt.Errorf("%s: %w", op, conflict)
		}

		log.Error("failed to update account", sl.Err(err))
		return models.Account{}, "", fmt.Errorf("%s: %w", op, err)
	}

	var token string
	if emailChanged {
		token, err = a.tokens.NewSessionToken(acc.Email)
		if err != nil {
			log.Error("failed to generate session token", sl.Err(err))
			return models.Account{}, "", fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("profile updated", slog.String("uid", acc.ID))

	return acc, token, nil
}

// DeleteAccount removes the account after the password is re-confirmed.
func (a *Auth) DeleteAccount(ctx context.Context, subject, password string) error {
	const op = "auth.DeleteAccount"

	log := a.log.With(slog.String("op", op))

	acc, err := a.sessionAccount(ctx, subject)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword(acc.PassHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	if err := a.accSaver.DeleteAccount(ctx, acc.ID); err != nil {
		log.Error("failed to delete account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account deleted", slog.String("uid", acc.ID))

	return nil
}

// resolveLogin finds an account by email, then by username.
func (a *Auth) resolveLogin(ctx context.Context, identifier string) (models.Account, error) {
	acc, err := a.accProvider.AccountByEmail(ctx, identifier)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, storage.ErrAccountNotFound) {
		return models.Account{}, err
	}

	acc, err = a.accProvider.AccountByUsername(ctx, identifier)
	if err == nil {
		return acc, nil
	}
	if errors.Is(err, storage.ErrAccountNotFound) {
		return models.Account{}, ErrNotFound
	}

	return models.Account{}, err
}

// resolveVerified finds the account a verified code belongs to: by email, then by mobile.
func (a *Auth) resolveVerified(ctx context.Context, identifier string) (models.Account, models.Channel, error) {
	acc, err := a.accProvider.AccountByEmail(ctx, identifier)
	if err == nil {
		return acc, models.ChannelEmail, nil
	}
	if !errors.Is(err, storage.ErrAccountNotFound) {
		return models.Account{}, "", err
	}

	acc, err = a.accProvider.AccountByMobile(ctx, identifier)
	if err == nil {
		return acc, models.ChannelMobile, nil
	}
	if errors.Is(err, storage.ErrAccountNotFound) {
		return models.Account{}, "", ErrNotFound
	}

	return models.Account{}, "", err
}

// sessionAccount loads the account a session subject refers to.
func (a *Auth) sessionAccount(ctx context.Context, subject string) (models.Account, error) {
	const op = "auth.sessionAccount"

	acc, err := a.accProvider.AccountByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return models.Account{}, ErrUnauthorized
		}

		a.log.Error("failed to get account", slog.String("op", op), sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

type uniqueCheck struct {
	value  string
	lookup func(context.Context, string) (models.Account, error)
	taken  error
}

// ensureFree checks email, then username, then mobile. Empty values are skipped.
func (a *Auth) ensureFree(ctx context.Context, email, username string, mobile *string) error {
	checks := []uniqueCheck{
		{email, a.accProvider.AccountByEmail, ErrEmailExists},
		{username, a.accProvider.AccountByUsername, ErrUsernameExists},
	}

	if mobile != nil {
		checks = append(checks, uniqueCheck{*mobile, a.accProvider.AccountByMobile, ErrMobileExists})
	}

	for _, c := range checks {
		if c.value == "" {
			continue
		}

		_, err := c.lookup(ctx, c.value)
		if err == nil {
			return c.taken
		}
		if !errors.Is(err, storage.ErrAccountNotFound) {
			return err
		}
	}

	return nil
}

func conflictErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrEmailExists):
		return ErrEmailExists
	case errors.Is(err, storage.ErrUsernameExists):
		return ErrUsernameExists
	case errors.Is(err, storage.ErrMobileExists):
		return ErrMobileExists
	case errors.Is(err, storage.ErrAccountExists):
		return ErrConflict
	default:
		return nil
	}
}
