package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shopmunim-backend/internal/config"
	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/format"
	"shopmunim-backend/internal/notify"
	"shopmunim-backend/internal/otp"
	"shopmunim-backend/internal/repository"

	fbauth "firebase.google.com/go/v4/auth"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPhone     = errors.New("please enter a valid 10-digit phone number")
	ErrInvalidOTP       = errors.New("invalid or expired OTP")
	ErrInvalidPIN       = errors.New("PIN must be 4 digits")
	ErrInvalidRole      = errors.New("invalid role")
	ErrNameRequired     = errors.New("name is required")
	ErrTermsRequired    = errors.New("please accept the terms and conditions")
	ErrUserNotFound     = errors.New("no account found for this phone number, please sign up")
	ErrUserExists       = errors.New("an account with this phone number already exists, please log in")
	ErrRoleNotAllowed   = errors.New("you do not have access to this role")
	ErrTooManyRequests  = errors.New("too many requests, please wait a minute")
	ErrTooManyAttempts  = errors.New("too many incorrect attempts, request a new OTP")
	ErrFirebaseDisabled = errors.New("firebase login is not configured")
	ErrInvalidToken     = errors.New("invalid token")
	ErrPINNotSet        = errors.New("no PIN is set for this account")
	ErrWrongPIN         = errors.New("incorrect PIN")
)

type AuthService struct {
	Config       config.Config
	Users        repository.UserRepository
	Sessions     repository.SessionRepository
	Customers    repository.CustomerRepository
	Exports      repository.DataExportRepository
	OTP          otp.Store
	SMS          notify.SMSGateway
	Logger       *slog.Logger
	FirebaseAuth *fbauth.Client
}

type AuthResult struct {
	Token     string
	User      domain.User
	ExpiresAt time.Time
}

type SendOTPInput struct {
	Phone         string
	Name          string
	IsLogin       bool
	TermsAccepted bool
}

type VerifyOTPInput struct {
	Phone         string
	OTP           string
	Name          string
	TermsAccepted bool
	Device        string
	OS            string
}

// SendOTP issues a code and hands it to the SMS gateway. The code is
// returned so development builds can echo it.
func (s AuthService) SendOTP(ctx context.Context, in SendOTPInput) (string, error) {
	phone := format.NormalizePhone(in.Phone)
	if !format.ValidPhone(phone) {
		return "", ErrInvalidPhone
	}
	_, err := s.Users.GetByPhone(ctx, phone)
	exists := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}
	if in.IsLogin && !exists {
		return "", ErrUserNotFound
	}
	if !in.IsLogin {
		if exists {
			return "", ErrUserExists
		}
		if strings.TrimSpace(in.Name) == "" {
			return "", ErrNameRequired
		}
		if !in.TermsAccepted {
			return "", ErrTermsRequired
		}
	}

	code, err := s.OTP.Issue(ctx, phone)
	if err != nil {
		if errors.Is(err, otp.ErrRateLimited) {
			return "", ErrTooManyRequests
		}
		return "", fmt.Errorf("issue otp: %w", err)
	}
	if s.SMS != nil {
		body := fmt.Sprintf("%s is your ShopMunim verification code. It expires in %d minutes.", code, int(s.OTP.TTL.Minutes()))
		if err := s.SMS.SendSMS(ctx, "+"+s.Config.DefaultCountryCode+phone, body); err != nil {
			s.Logger.Warn("otp sms failed", "err", err)
		}
	}
	return code, nil
}

// VerifyOTP checks the code, creates the user on first sign-up and opens a
// login session.
func (s AuthService) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*AuthResult, error) {
	phone := format.NormalizePhone(in.Phone)
	if !format.ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}
	if !format.ValidOTP(in.OTP) {
		return nil, ErrInvalidOTP
	}
	if err := s.OTP.Verify(ctx, phone, in.OTP); err != nil {
		switch {
		case errors.Is(err, otp.ErrTooManyAttempts):
			return nil, ErrTooManyAttempts
		case errors.Is(err, otp.ErrInvalidCode), errors.Is(err, otp.ErrExpired):
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("verify otp: %w", err)
	}

	user, err := s.Users.GetByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		user, err = s.createUser(ctx, name, phone)
	}
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, user, in.Device, in.OS)
}

// LoginWithFirebase accepts a Firebase phone-auth ID token.
func (s AuthService) LoginWithFirebase(ctx context.Context, idToken, device, os string) (*AuthResult, error) {
	if s.FirebaseAuth == nil {
		return nil, ErrFirebaseDisabled
	}
	tok, err := s.FirebaseAuth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	raw, _ := tok.Claims["phone_number"].(string)
	phone := format.NormalizePhone(raw)
	if !format.ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}
	user, err := s.Users.GetByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		name, _ := tok.Claims["name"].(string)
		if strings.TrimSpace(name) == "" {
			name = "User"
		}
		user, err = s.createUser(ctx, name, phone)
	}
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, user, device, os)
}

func (s AuthService) createUser(ctx context.Context, name, phone string) (*domain.User, error) {
	user, err := s.Users.Create(ctx, repository.CreateUserParams{Name: name, Phone: phone, Role: domain.RoleCustomer})
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	if err := s.Customers.LinkUser(ctx, user.ID, phone); err != nil {
		s.Logger.Warn("link customer accounts failed", "user_id", user.ID, "err", err)
	}
	return user, nil
}

func (s AuthService) openSession(ctx context.Context, user *domain.User, device, os string) (*AuthResult, error) {
	sess, err := s.Sessions.Create(ctx, user.ID, device, os)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	exp := time.Now().Add(s.Config.AccessTokenTTL)
	token, err := IssueAccessToken(s.Config.JWTSecret, user.ID, sess.ID, exp)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: *user, ExpiresAt: exp}, nil
}

func (s AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// TouchSession records activity on a session; failures are only logged.
func (s AuthService) TouchSession(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.Sessions.Touch(ctx, sessionID); err != nil {
		s.Logger.Warn("touch session failed", "session_id", sessionID, "err", err)
	}
}

func (s AuthService) SwitchRole(ctx context.Context, userID string, role domain.UserRole) (*domain.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.CanAssume(role) {
		return nil, ErrRoleNotAllowed
	}
	if u.ActiveRole == role {
		return u, nil
	}
	return s.Users.SetRole(ctx, userID, role)
}

func (s AuthService) UpdateProfile(ctx context.Context, userID string, name, phone *string) (*domain.User, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, ErrNameRequired
		}
		name = &trimmed
	}
	if phone != nil {
		p := format.NormalizePhone(*phone)
		if !format.ValidPhone(p) {
			return nil, ErrInvalidPhone
		}
		phone = &p
	}
	u, err := s.Users.UpdateProfile(ctx, userID, name, phone)
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, ErrUserExists
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// SetPhoto stores a base64 image; an empty photo removes it.
func (s AuthService) SetPhoto(ctx context.Context, userID, photo string) (*domain.User, error) {
	u, err := s.Users.SetPhoto(ctx, userID, photo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s AuthService) SetPIN(ctx context.Context, userID, pin string) error {
	if !format.ValidPIN(pin) {
		return ErrInvalidPIN
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	h := string(hash)
	return s.Users.SetPINHash(ctx, userID, &h)
}

// VerifyPIN checks pin against the stored hash for the app lock screen.
func (s AuthService) VerifyPIN(ctx context.Context, userID, pin string) error {
	if !format.ValidPIN(pin) {
		return ErrInvalidPIN
	}
	hash, err := s.Users.PINHash(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if hash == "" {
		return ErrPINNotSet
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) != nil {
		return ErrWrongPIN
	}
	return nil
}

func (s AuthService) ResetPIN(ctx context.Context, userID string) error {
	return s.Users.SetPINHash(ctx, userID, nil)
}

func (s AuthService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.Sessions.ListByUser(ctx, userID)
}

func (s AuthService) RequestDataExport(ctx context.Context, userID string) (*domain.DataExportRequest, error) {
	return s.Exports.Create(ctx, userID)
}

func (s AuthService) DeleteAccount(ctx context.Context, userID string) error {
	err := s.Users.SoftDelete(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
