package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"anoa.com/lazylegends/internal/entity"
	search "anoa.com/lazylegends/internal/modules/search/service"
	"anoa.com/lazylegends/internal/modules/user/dto"
	"anoa.com/lazylegends/internal/modules/user/repository"
	"anoa.com/lazylegends/pkg/apperror"
	"anoa.com/lazylegends/pkg/logger"
	"anoa.com/lazylegends/pkg/sheets"
	"anoa.com/lazylegends/pkg/storage"
	"anoa.com/lazylegends/pkg/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const imageFolder = "avatars"

var (
	ErrInvalidCredentials = apperror.New(http.StatusUnauthorized, "invalid credentials", apperror.ErrUnauthorized)
	ErrHandleTaken        = apperror.New(http.StatusConflict, "handle already registered", apperror.ErrConflict)
	ErrInvalidToken       = apperror.New(http.StatusUnauthorized, "invalid or expired token", apperror.ErrUnauthorized)
	ErrSessionEnded       = apperror.New(http.StatusUnauthorized, "session has ended", apperror.ErrUnauthorized)
	ErrUserNotFound       = apperror.New(http.StatusNotFound, "user not found", apperror.ErrNotFound)
)

// allowedImageTypes maps sniffed content types to the stored file extension.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

type AuthService interface {
	Register(ctx context.Context, input dto.RegisterInput) (*dto.RegisterResponse, error)
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	VerifyToken(ctx context.Context, token string) (*dto.Session, error)
	DeleteAccount(ctx context.Context, session *dto.Session) error
	UploadProfileImage(ctx context.Context, handle string, file *dto.ImageFile) (string, error)
	Me(ctx context.Context, handle string) (*dto.MeResponse, error)
	UpdateWallet(ctx context.Context, handle, wallet string) (*dto.MeResponse, error)
}

type Options struct {
	JWTSecret         string
	TokenTTL          time.Duration
	MinPasswordLength int
	WalletBonusPoints int
	MaxImageBytes     int64
}

type authService struct {
	repo         repository.UserRepository
	sessions     repository.SessionRepository
	imageStorage storage.ImageStorage
	sheet        sheets.Appender
	search       search.SearchService
	opts         Options

	now   func() time.Time
	async func(func())
}

func NewAuthService(
	repo repository.UserRepository,
	sessions repository.SessionRepository,
	imageStorage storage.ImageStorage,
	sheet sheets.Appender,
	searchSvc search.SearchService,
	opts Options,
) AuthService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 8
	}

	return &authService{
		repo:         repo,
		sessions:     sessions,
		imageStorage: imageStorage,
		sheet:        sheet,
		search:       searchSvc,
		opts:         opts,
		now:          time.Now,
		async:        func(fn func()) { go fn() },
	}
}

func (s *authService) Register(ctx context.Context, input dto.RegisterInput) (*dto.RegisterResponse, error) {
	handle := validator.NormalizeHandle(input.Handle)
	if !validator.IsValidHandle(handle) {
		return nil, apperror.Validation("handle must be @ followed by 1-15 letters, digits or underscores")
	}
	if len(input.Password) < s.opts.MinPasswordLength {
		return nil, apperror.Validation(fmt.Sprintf("password must be at least %d characters", s.opts.MinPasswordLength))
	}

	wallet := validator.NormalizeWallet(input.Wallet)
	if wallet != validator.WalletUnset && !validator.IsValidWallet(wallet) {
		return nil, apperror.Validation("wallet must look like 0.0.12345")
	}

	if _, err := s.repo.FindByHandle(ctx, handle); err == nil {
		return nil, ErrHandleTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		Handle:       handle,
		Wallet:       wallet,
		PasswordHash: string(hash),
	}

	var bonus int
	var activity *entity.ActivityLog
	if validator.HasWallet(wallet) && s.opts.WalletBonusPoints > 0 {
		bonus = s.opts.WalletBonusPoints
		user.Points = bonus
		activity = &entity.ActivityLog{
			Points:     bonus,
			Multiplier: 1,
			Reason:     entity.ReasonWalletBonus,
			CreatedAt:  s.now(),
		}
	}

	if err := s.repo.Create(ctx, user, activity); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrHandleTaken
		}
		return nil, err
	}

	s.afterRegister(user)

	auth, err := s.issueToken(user.Handle)
	if err != nil {
		return nil, err
	}

	return &dto.RegisterResponse{
		Message:      "registration successful",
		Points:       user.Points,
		BonusPoints:  bonus,
		AuthResponse: *auth,
	}, nil
}

// afterRegister runs the side effects that must never fail the request.
func (s *authService) afterRegister(user *entity.User) {
	handle, wallet := user.Handle, user.Wallet
	doc := *user

	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := s.sheet.AppendRow(ctx, handle, wallet); err != nil {
			logger.WithError(err).WithField("handle", handle).Warn("Failed to log registration to sheet")
		}
		if err := s.search.IndexUser(&doc); err != nil {
			logger.WithError(err).WithField("handle", handle).Warn("Failed to index user")
		}
	})
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	handle := validator.NormalizeHandle(input.Handle)

	user, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(user.Handle)
}

// Logout revokes the token when it is still valid. Missing or bad tokens are a no-op.
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.parseToken(token)
	if err != nil {
		return nil
	}

	return s.revoke(ctx, claims)
}

func (s *authService) VerifyToken(ctx context.Context, token string) (*dto.Session, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.ID != "" {
		revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrSessionEnded
		}
	}

	// Tokens of deleted accounts stay signed until expiry; the row is the authority.
	if _, err := s.repo.FindByHandle(ctx, claims.Subject); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionEnded
		}
		return nil, err
	}

	session := &dto.Session{Handle: claims.Subject, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return session, nil
}

func (s *authService) DeleteAccount(ctx context.Context, session *dto.Session) error {
	user, err := s.repo.FindByHandle(ctx, session.Handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, user.Handle); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.ImageURL != nil && *user.ImageURL != "" {
		if err := s.imageStorage.DeleteImage(ctx, *user.ImageURL); err != nil {
			logger.WithError(err).WithField("handle", user.Handle).Warn("Failed to delete profile image")
		}
	}
	if err := s.search.DeleteUser(user.Handle); err != nil {
		logger.WithError(err).WithField("handle", user.Handle).Warn("Failed to remove user from search index")
	}

	if session.TokenID != "" {
		exp := time.Unix(session.ExpiresAt, 0)
		if err := s.sessions.Revoke(ctx, session.TokenID, exp); err != nil {
			logger.WithError(err).WithField("handle", user.Handle).Warn("Failed to revoke session after account deletion")
		}
	}

	logger.WithField("handle", user.Handle).Info("Account deleted")
	return nil
}

func (s *authService) UploadProfileImage(ctx context.Context, handle string, file *dto.ImageFile) (string, error) {
	if file == nil || file.Reader == nil {
		return "", apperror.Validation("photo is required")
	}
	if s.opts.MaxImageBytes > 0 && file.Size > s.opts.MaxImageBytes {
		return "", s.tooLarge()
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return "", apperror.Validation("photo is empty")
		}
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", apperror.Validation("only JPEG, PNG or GIF images are allowed")
	}

	body := io.MultiReader(bytes.NewReader(head), file.Reader)
	if s.opts.MaxImageBytes > 0 {
		// Size from the multipart header is client supplied; enforce it on the stream too.
		data, err := io.ReadAll(io.LimitReader(body, s.opts.MaxImageBytes+1))
		if err != nil {
			return "", fmt.Errorf("failed to read upload: %w", err)
		}
		if int64(len(data)) > s.opts.MaxImageBytes {
			return "", s.tooLarge()
		}
		body = bytes.NewReader(data)
	}

	user, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	name := fmt.Sprintf("%s-%s%s", strings.TrimPrefix(user.Handle, "@"), uuid.NewString(), ext)
	url, err := s.imageStorage.UploadImage(ctx, body, imageFolder, name)
	if err != nil {
		return "", fmt.Errorf("failed to store profile image: %w", err)
	}

	if err := s.repo.UpdateImage(ctx, user.Handle, &url); err != nil {
		if delErr := s.imageStorage.DeleteImage(ctx, url); delErr != nil {
			logger.WithError(delErr).WithField("url", url).Warn("Failed to clean up orphan profile image")
		}
		return "", err
	}

	if user.ImageURL != nil && *user.ImageURL != "" && *user.ImageURL != url {
		if err := s.imageStorage.DeleteImage(ctx, *user.ImageURL); err != nil {
			logger.WithError(err).WithField("handle", user.Handle).Warn("Failed to delete previous profile image")
		}
	}

	user.ImageURL = &url
	s.async(func() {
		if err := s.search.IndexUser(user); err != nil {
			logger.WithError(err).WithField("handle", user.Handle).Warn("Failed to reindex user")
		}
	})

	return url, nil
}

func (s *authService) tooLarge() error {
	limit := fmt.Sprintf("%d KiB", s.opts.MaxImageBytes/1024)
	if s.opts.MaxImageBytes >= 1024*1024 {
		limit = fmt.Sprintf("%d MiB", s.opts.MaxImageBytes/(1024*1024))
	}
	return apperror.Validation("image exceeds the " + limit + " limit")
}

func (s *authService) Me(ctx context.Context, handle string) (*dto.MeResponse, error) {
	user, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toMe(user), nil
}

// UpdateWallet links or replaces the wallet. The registration bonus is not re-awarded.
func (s *authService) UpdateWallet(ctx context.Context, handle, wallet string) (*dto.MeResponse, error) {
	wallet = validator.NormalizeWallet(wallet)
	if wallet != validator.WalletUnset && !validator.IsValidWallet(wallet) {
		return nil, apperror.Validation("wallet must look like 0.0.12345")
	}

	if err := s.repo.UpdateWallet(ctx, handle, wallet); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Me(ctx, handle)
}

func toMe(user *entity.User) *dto.MeResponse {
	return &dto.MeResponse{
		Handle:   user.Handle,
		Wallet:   user.Wallet,
		Points:   user.Points,
		ImageURL: user.ImageURL,
	}
}

func (s *authService) issueToken(handle string) (*dto.AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.opts.TokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   handle,
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &dto.AuthResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.opts.TokenTTL.Seconds()),
		Handle:      handle,
	}, nil
}

func (s *authService) parseToken(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (s *authService) revoke(ctx context.Context, claims *jwt.RegisteredClaims) error {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return s.sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
