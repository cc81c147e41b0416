package services

import (
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"github.com/tidewell/suggestbox/models"
	"github.com/tidewell/suggestbox/utils"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

const minPasswordLength = 8

// CredentialStore owns account creation and password verification. Passwords
// never leave this package unhashed.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// ValidateUsername checks the allowed character set and length.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username must be 3-64 characters of letters, digits, underscore or hyphen", ErrValidation)
	}
	return nil
}

// ValidatePassword enforces the minimum length only; composition rules are
// deliberately not imposed.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}

// Register creates a new account with a bcrypt-hashed password. Uniqueness is
// enforced by the database index, so concurrent registrations of the same
// username race safely: exactly one wins, the rest get ErrDuplicateUsername.
func (s *CredentialStore) Register(username, password, registerIP string) (*models.User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		RegisterIP:   registerIP,
	}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return user, nil
}

// Verify checks username and password against the stored hash. A missing user
// and a wrong password both return ErrInvalidCredentials so the caller cannot
// distinguish which part failed.
func (s *CredentialStore) Verify(username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" || !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Exists reports whether a username is already registered.
func (s *CredentialStore) Exists(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUser returns the user with the given id, or ErrNotFound.
func (s *CredentialStore) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpsertOAuthUser finds or creates an account for an external identity.
// OAuth accounts have no local password, so Verify always rejects them.
func (s *CredentialStore) UpsertOAuthUser(provider, providerID, preferredName, registerIP string) (*models.User, error) {
	var user models.User
	err := s.db.Where("provider = ? AND provider_id = ?", provider, providerID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	username := preferredName
	if ValidateUsername(username) != nil {
		username = fmt.Sprintf("%s_%s", provider, providerID)
	}
	// Fall back to a provider-scoped name if the preferred one is taken.
	if taken, err := s.Exists(username); err != nil {
		return nil, err
	} else if taken {
		username = fmt.Sprintf("%s_%s", provider, providerID)
	}

	user = models.User{
		Username:   username,
		Provider:   provider,
		ProviderID: providerID,
		RegisterIP: registerIP,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return &user, nil
}
