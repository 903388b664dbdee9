package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"time"

	"digibank/internal/errs"
	"digibank/internal/models"
	"digibank/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// openingBalance is credited to every new account. The deposit is backed
// by an opening ledger entry so reconciliation starts from a clean slate.
var openingBalance = mustDecimal("1000.00")

// IdentityService handles registration, login and JWT issuance.
type IdentityService struct {
	store     store.Store
	secretKey []byte
	logger    zerolog.Logger
}

type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func NewIdentityService(st store.Store, secret string, logger zerolog.Logger) *IdentityService {
	if secret == "" {
		secret = "default-secret-key-change-in-production"
		logger.Warn().Msg("JWT_SECRET not set, using default key")
	}
	return &IdentityService{
		store:     st,
		secretKey: []byte(secret),
		logger:    logger,
	}
}

// Register creates the user and their primary account in one unit of
// work. The opening deposit is written as a successful credit entry.
func (s *IdentityService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, errs.E(errs.InvalidInput, "name, email and password are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, errs.E(errs.InvalidInput, "invalid email address")
	}
	if len(req.Password) < 8 {
		return nil, errs.E(errs.InvalidInput, "password must be at least 8 characters")
	}

	if _, err := s.store.Users().GetByEmail(ctx, req.Email); err == nil {
		return nil, errs.E(errs.InvalidInput, "a user with this email already exists")
	} else if errs.KindOf(err) != errs.NotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	number, err := generateAccountNumber()
	if err != nil {
		return nil, err
	}

	if err := s.store.Do(ctx, func(session store.Session) error {
		if err := session.Users().Create(ctx, user); err != nil {
			return err
		}
		account := &models.Account{
			UserID:        user.ID,
			AccountNumber: number,
			Kind:          models.AccountKindSavings,
			Currency:      "INR",
			Balance:       openingBalance,
		}
		if err := session.Accounts().Create(ctx, account); err != nil {
			return err
		}
		opening := &models.Transaction{
			PublicID:  newTransactionID(),
			AccountID: account.ID,
			UserID:    user.ID,
			Amount:    openingBalance,
			Currency:  account.Currency,
			Type:      models.TransactionTypeCredit,
			Remark:    "Opening balance",
		}
		if err := session.Ledger().RecordPending(ctx, opening); err != nil {
			return err
		}
		return session.Ledger().MarkSuccessful(ctx, opening.PublicID, "")
	}); err != nil {
		return nil, err
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("User registered")
	return &models.AuthResponse{User: user, Token: token}, nil
}

// Login authenticates by email and password.
func (s *IdentityService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, errs.E(errs.InvalidInput, "email and password are required")
	}

	user, err := s.store.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return nil, errs.E(errs.Unauthorized, "invalid email or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("email", req.Email).Msg("Failed authentication attempt")
		return nil, errs.E(errs.Unauthorized, "invalid email or password")
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("User authenticated")
	return &models.AuthResponse{User: user, Token: token}, nil
}

func (s *IdentityService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error generating token")
		return "", err
	}
	return signed, nil
}

func (s *IdentityService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.E(errs.Unauthorized, "invalid signing method")
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errs.E(errs.Unauthorized, "invalid or expired token")
	}
	return claims, nil
}

// Me returns the user's profile with their primary account.
func (s *IdentityService) Me(ctx context.Context, userID int64) (*models.User, *models.Account, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	account, err := s.store.Accounts().PrimaryForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, account, nil
}

func generateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate account number: %w", err)
	}
	return fmt.Sprintf("%012d", n.Int64()), nil
}
