package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/apperr"
	"github.com/thishamdi/digital-store-api/internal/logger"
	"github.com/thishamdi/digital-store-api/internal/models"
	"github.com/thishamdi/digital-store-api/internal/services/mailer"
	"github.com/thishamdi/digital-store-api/internal/utils"
	"github.com/thishamdi/digital-store-api/internal/validate"
)

var (
	ErrUserExists          = apperr.Conflict("User already exists")
	ErrInvalidCredentials  = apperr.Unauthorized("Invalid credentials")
	ErrMissingRefreshToken = apperr.Unauthorized("Unauthorized request")
	ErrInvalidRefreshToken = apperr.Unauthorized("Invalid refresh token")
	ErrInvalidOTP          = apperr.BadRequest("Invalid or expired OTP")
	ErrAlreadyVerified     = apperr.BadRequest("Email already verified")
	ErrOTPCooldown         = apperr.TooManyRequests("Please wait 1 minute before requesting new OTP")
	ErrUserNotFound        = apperr.Unauthorized("Invalid access token")
	ErrGoogleNotVerified   = apperr.Unauthorized("Google account email is not verified")
	ErrGoogleNoAccount     = apperr.Unauthorized("No admin account is linked to this Google email")
)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetInput struct {
	OTP         string `json:"otp" validate:"required,len=6"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// Session is what a successful sign-in hands back to the HTTP layer.
type Session struct {
	User   *models.User
	Tokens utils.TokenPair
}

type AccountService struct {
	DB     *gorm.DB
	Tokens *utils.TokenIssuer
	Mailer mailer.Mailer
	Now    func() time.Time
}

func NewAccountService(db *gorm.DB, tokens *utils.TokenIssuer, m mailer.Mailer) *AccountService {
	if m == nil {
		m = mailer.LogMailer{}
	}
	return &AccountService{DB: db, Tokens: tokens, Mailer: m, Now: time.Now}
}

// NewAdmin builds an admin user with a hashed password. It is the only way
// a password hash gets onto a new user.
func NewAdmin(username, email, password string) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &models.User{
		Username: strings.TrimSpace(username),
		Email:    normalizeEmail(email),
		Password: hash,
		Role:     models.RoleAdmin,
	}, nil
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&models.User{}).
		Where("email = ? OR username = ?", in.Email, in.Username).
		Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrUserExists
	}

	u, err := NewAdmin(in.Username, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	if err := db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}

	logger.WithCtx(ctx).Info("admin registered", "user_id", u.ID, "email", u.Email)
	return s.startSession(ctx, u)
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var u models.User
	err := s.DB.WithContext(ctx).Where("email = ? AND role = ?", in.Email, models.RoleAdmin).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(u.Password, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, &u)
}

func (s *AccountService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", "").Error
}

// Refresh rotates the session. Only the refresh token currently stored for
// the user is accepted; the swap is conditional on it so two concurrent
// refreshes with the same token cannot both win.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}
	claims, err := s.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	var u models.User
	err = s.DB.WithContext(ctx).First(&u, "id = ?", claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	if u.RefreshToken == "" || u.RefreshToken != refreshToken {
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.Tokens.Issue(u.ID.String(), string(u.Role))
	if err != nil {
		return nil, err
	}
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", u.ID, refreshToken).
		Update("refresh_token", pair.RefreshToken)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidRefreshToken
	}
	u.RefreshToken = pair.RefreshToken
	return &Session{User: &u, Tokens: pair}, nil
}

// ForgotPassword mails a reset OTP. Unknown emails get the same nil result
// as known ones.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validate.Var("email", email, "required,email"); err != nil {
		return err
	}

	var u models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.WithCtx(ctx).Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	now := s.Now().UTC()
	if u.LastOtpRequest != nil && now.Sub(*u.LastOtpRequest) < utils.OTPCooldown {
		return ErrOTPCooldown
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		return err
	}
	expiry := now.Add(utils.OTPTTL)
	if err := s.DB.WithContext(ctx).Model(&u).Updates(map[string]any{
		"reset_password_otp":    utils.HashOTP(otp),
		"reset_password_expiry": expiry,
		"last_otp_request":      now,
	}).Error; err != nil {
		return err
	}

	return s.Mailer.SendOTP(ctx, u.Email, otp, mailer.PurposeReset)
}

// ResetPassword sets a new password for the holder of a valid reset OTP and
// signs every session out.
func (s *AccountService) ResetPassword(ctx context.Context, in ResetInput) error {
	in.OTP = strings.TrimSpace(in.OTP)
	if err := validate.Struct(in); err != nil {
		return err
	}

	var u models.User
	err := s.DB.WithContext(ctx).
		Where("reset_password_otp = ? AND reset_password_expiry > ?", utils.HashOTP(in.OTP), s.Now().UTC()).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.DB.WithContext(ctx).Model(&u).Updates(map[string]any{
		"password":              hash,
		"reset_password_otp":    "",
		"reset_password_expiry": nil,
		"refresh_token":         "",
	}).Error; err != nil {
		return err
	}

	logger.WithCtx(ctx).Info("password reset", "user_id", u.ID)
	return nil
}

func (s *AccountService) SendVerification(ctx context.Context, userID uuid.UUID) error {
	u, err := s.FindUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsEmailVerified {
		return ErrAlreadyVerified
	}

	now := s.Now().UTC()
	if u.LastOtpRequest != nil && now.Sub(*u.LastOtpRequest) < utils.OTPCooldown {
		return ErrOTPCooldown
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Model(u).Updates(map[string]any{
		"email_verification_otp":    utils.HashOTP(otp),
		"email_verification_expiry": now.Add(utils.OTPTTL),
		"last_otp_request":          now,
	}).Error; err != nil {
		return err
	}

	return s.Mailer.SendOTP(ctx, u.Email, otp, mailer.PurposeVerification)
}

func (s *AccountService) VerifyEmail(ctx context.Context, userID uuid.UUID, otp string) error {
	otp = strings.TrimSpace(otp)
	if err := validate.Var("otp", otp, "required,len=6"); err != nil {
		return err
	}

	u, err := s.FindUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerificationExpiry == nil || !s.Now().Before(*u.EmailVerificationExpiry) ||
		!utils.OTPMatches(u.EmailVerificationOtp, otp) {
		return ErrInvalidOTP
	}

	return s.DB.WithContext(ctx).Model(u).Updates(map[string]any{
		"is_email_verified":         true,
		"email_verification_otp":    "",
		"email_verification_expiry": nil,
	}).Error
}

// GoogleLogin signs in an existing admin by the email Google vouched for.
// Accounts are never created this way.
func (s *AccountService) GoogleLogin(ctx context.Context, email string, verified bool) (*Session, error) {
	if !verified {
		return nil, ErrGoogleNotVerified
	}

	var u models.User
	err := s.DB.WithContext(ctx).Where("email = ? AND role = ?", normalizeEmail(email), models.RoleAdmin).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGoogleNoAccount
	}
	if err != nil {
		return nil, err
	}

	if !u.IsEmailVerified {
		if err := s.DB.WithContext(ctx).Model(&u).Update("is_email_verified", true).Error; err != nil {
			return nil, err
		}
		u.IsEmailVerified = true
	}
	return s.startSession(ctx, &u)
}

func (s *AccountService) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *AccountService) startSession(ctx context.Context, u *models.User) (*Session, error) {
	pair, err := s.Tokens.Issue(u.ID.String(), string(u.Role))
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(u).Update("refresh_token", pair.RefreshToken).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	u.RefreshToken = pair.RefreshToken
	return &Session{User: u, Tokens: pair}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
