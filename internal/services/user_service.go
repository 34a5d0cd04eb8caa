package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "budgetbook/internal/errors"
	"budgetbook/internal/events"
	"budgetbook/internal/models"
	"budgetbook/internal/store"
)

// DefaultPlaceholderDomain completes identifiers entered without a domain.
const DefaultPlaceholderDomain = "temp.com"

// minPasswordLength mirrors the sign-up request binding.
const minPasswordLength = 6

// userService handles authentication and profile business logic.
type userService struct {
	db                *gorm.DB
	placeholderDomain string
	publisher         events.Publisher
}

// NewUserService creates a new UserServicer. Identifiers without an "@" are
// completed with placeholderDomain.
func NewUserService(db *gorm.DB, placeholderDomain string, publisher events.Publisher) UserServicer {
	if placeholderDomain == "" {
		placeholderDomain = DefaultPlaceholderDomain
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &userService{db: db, placeholderDomain: placeholderDomain, publisher: publisher}
}

// NormalizeIdentifier turns a sign-in identifier into the stored email and
// the default profile name. A bare username such as "alice" becomes
// "alice@<placeholderDomain>" with profile name "alice".
func NormalizeIdentifier(identifier, placeholderDomain string) (email, name string) {
	trimmed := strings.TrimSpace(identifier)
	name, _, _ = strings.Cut(trimmed, "@")

	email = strings.ToLower(trimmed)
	if !strings.Contains(email, "@") {
		email += "@" + placeholderDomain
	}
	return email, name
}

// SignUp registers a new user together with their profile.
func (s *userService) SignUp(ctx context.Context, identifier, password string) (*models.User, error) {
	if strings.TrimSpace(identifier) == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "password must be at least 6 characters")
	}

	email, name := NormalizeIdentifier(identifier, s.placeholderDomain)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, store.Translate(err, nil)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hashedPassword),
		IsActive: true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrDuplicateEmail
			}
			return err
		}
		user.Profile = &models.Profile{ID: user.ID, Name: name}
		return tx.Create(user.Profile).Error
	})
	if err != nil {
		return nil, store.Translate(err, nil)
	}

	events.Notify(ctx, s.publisher, events.SignedIn, user.ID, "")
	return user, nil
}

// SignIn verifies the credentials and records the login time. Any failure
// to match is reported as INVALID_CREDENTIALS.
func (s *userService) SignIn(ctx context.Context, identifier, password string) (*models.User, error) {
	email, _ := NormalizeIdentifier(identifier, s.placeholderDomain)

	var user models.User
	err := s.db.WithContext(ctx).Preload("Profile").
		Where("email = ? AND is_active = ?", email, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, store.Translate(err, nil)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("last_login_at", now).Error; err != nil {
		return nil, store.Translate(err, nil)
	}
	user.LastLoginAt = &now

	events.Notify(ctx, s.publisher, events.SignedIn, user.ID, "")
	return &user, nil
}

// SignOut revokes the user's refresh token.
func (s *userService) SignOut(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token_hash", "")
	if result.Error != nil {
		return store.Translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}

	events.Notify(ctx, s.publisher, events.SignedOut, userID, "")
	return nil
}

// GetUserByID retrieves a user and their profile.
func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Profile").Where("id = ?", id).First(&user).Error; err != nil {
		return nil, store.Translate(err, apperrors.ErrUserNotFound)
	}
	return &user, nil
}

// UpdateProfile changes the display name and/or avatar. An empty avatar URL
// removes the avatar.
func (s *userService) UpdateProfile(ctx context.Context, userID string, name, avatarURL *string) (*models.Profile, error) {
	updates := make(map[string]interface{})
	if name != nil {
		if err := requireText("name", *name); err != nil {
			return nil, err
		}
		updates["name"] = strings.TrimSpace(*name)
	}
	if avatarURL != nil {
		if *avatarURL == "" {
			updates["avatar_url"] = nil
		} else {
			updates["avatar_url"] = *avatarURL
		}
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		result := db.Model(&models.Profile{}).Where("id = ?", userID).Updates(updates)
		if result.Error != nil {
			return nil, store.Translate(result.Error, nil)
		}
		if result.RowsAffected == 0 {
			return nil, apperrors.ErrUserNotFound
		}
	}

	var profile models.Profile
	if err := db.Where("id = ?", userID).First(&profile).Error; err != nil {
		return nil, store.Translate(err, apperrors.ErrUserNotFound)
	}

	if len(updates) > 0 {
		events.Notify(ctx, s.publisher, events.ProfileUpdated, userID, userID)
	}
	return &profile, nil
}

// StoreRefreshTokenHash saves the hash of the user's current refresh token.
func (s *userService) StoreRefreshTokenHash(ctx context.Context, userID, tokenHash string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token_hash", tokenHash)
	if result.Error != nil {
		return store.Translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// GetRefreshTokenHash returns the stored refresh token hash; empty after sign-out.
func (s *userService) GetRefreshTokenHash(ctx context.Context, userID string) (string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "refresh_token_hash").
		Where("id = ? AND is_active = ?", userID, true).
		First(&user).Error
	if err != nil {
		return "", store.Translate(err, apperrors.ErrUserNotFound)
	}
	return user.RefreshTokenHash, nil
}
