package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"

	"digibank/internal/cache"
	"digibank/internal/errs"
	"digibank/internal/models"
	"digibank/internal/notify"
	"digibank/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	pinPattern    = regexp.MustCompile(`^\d{4}$|^\d{6}$`)
	handlePattern = regexp.MustCompile(`^[\w.-]+@digibank$`)
)

const otpTTL = 10 * time.Minute

// CredentialGate owns the UPI PIN: registration, verification and the
// OTP-based reset flow. Only bcrypt hashes are stored; the supplied or
// stored secret is never logged.
type CredentialGate struct {
	store      store.Store
	otps       cache.TTLStore
	dispatcher notify.Dispatcher
	logger     zerolog.Logger
}

func NewCredentialGate(st store.Store, otps cache.TTLStore, dispatcher notify.Dispatcher, logger zerolog.Logger) *CredentialGate {
	return &CredentialGate{
		store:      st,
		otps:       otps,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterUPI claims a handle and sets the initial PIN for the user.
func (g *CredentialGate) RegisterUPI(ctx context.Context, userID int64, handle, pin string) error {
	if !handlePattern.MatchString(handle) {
		return errs.E(errs.InvalidInput, "UPI handle must end with @digibank")
	}
	if len(handle) < len("xx@digibank") {
		return errs.E(errs.InvalidInput, "UPI handle username must be at least 2 characters")
	}
	if !pinPattern.MatchString(pin) {
		return errs.E(errs.InvalidInput, "PIN must be 4 or 6 digits")
	}

	existing, err := g.store.Users().GetByUPI(ctx, handle)
	if err != nil && errs.KindOf(err) != errs.NotFound {
		return err
	}
	if existing != nil && existing.ID != userID {
		return errs.E(errs.InvalidInput, fmt.Sprintf("UPI handle %q is already taken", handle))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}

	if err := g.store.Users().SetUPI(ctx, userID, handle, string(hash)); err != nil {
		return err
	}

	g.logger.Info().Int64("user_id", userID).Str("upi_handle", handle).Msg("UPI handle registered")
	return nil
}

// Verify checks the supplied PIN against the stored hash. The mismatch
// error carries no detail about which part failed.
func (g *CredentialGate) Verify(ctx context.Context, userID int64, pin string) error {
	if pin == "" {
		return errs.E(errs.InvalidInput, "UPI PIN is required")
	}

	user, err := g.store.Users().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.UPIPinHash == "" {
		return errs.E(errs.Unauthorized, "UPI PIN not set")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.UPIPinHash), []byte(pin)); err != nil {
		g.logger.Warn().Int64("user_id", userID).Msg("UPI PIN verification failed")
		return errs.E(errs.Unauthorized, "invalid UPI PIN")
	}
	return nil
}

func otpKey(userID int64) string {
	return "upi_pin_otp:" + strconv.FormatInt(userID, 10)
}

// SendResetOTP generates a short-lived reset code and hands it to the
// dispatcher for out-of-band delivery.
func (g *CredentialGate) SendResetOTP(ctx context.Context, userID int64) error {
	user, err := g.store.Users().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.UPIHandle == "" {
		return errs.E(errs.InvalidState, "UPI handle not set for the user")
	}

	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}
	otp := strconv.FormatInt(n.Int64()+100000, 10)

	g.otps.Put(otpKey(userID), otp, otpTTL)

	if err := g.dispatcher.Dispatch(ctx, notify.Event{
		Type:      notify.EventPinResetOTP,
		UserID:    userID,
		Detail:    otp,
		Timestamp: time.Now(),
	}); err != nil {
		g.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to dispatch PIN reset OTP")
	}
	return nil
}

// ResetPIN verifies the OTP and replaces the stored hash. The OTP entry
// is invalidated on success and on a wrong-code attempt it stays usable
// until expiry, matching a single successful use.
func (g *CredentialGate) ResetPIN(ctx context.Context, userID int64, otp, newPin string) error {
	if otp == "" || newPin == "" {
		return errs.E(errs.InvalidInput, "OTP and new PIN are required")
	}
	if !pinPattern.MatchString(newPin) {
		return errs.E(errs.InvalidInput, "PIN must be 4 or 6 digits")
	}

	stored, ok := g.otps.Get(otpKey(userID))
	if !ok {
		return errs.E(errs.InvalidState, "OTP not requested or expired")
	}
	if stored != otp {
		return errs.E(errs.Unauthorized, "invalid OTP")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}
	if err := g.store.Users().SetPINHash(ctx, userID, string(hash)); err != nil {
		return err
	}

	g.otps.Invalidate(otpKey(userID))
	g.logger.Info().Int64("user_id", userID).Msg("UPI PIN reset")
	return nil
}

// ValidateHandle checks format and existence of a UPI handle and returns
// the display name when it resolves.
func (g *CredentialGate) ValidateHandle(ctx context.Context, handle string) (*models.User, error) {
	if !handlePattern.MatchString(handle) {
		return nil, errs.E(errs.InvalidInput, "invalid UPI handle format")
	}
	return g.store.Users().GetByUPI(ctx, handle)
}
