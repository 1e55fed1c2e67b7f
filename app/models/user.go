package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"

	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"

	TIER_FREE       = "free"
	TIER_PREMIUM    = "premium"
	TIER_ENTERPRISE = "enterprise"

	SUBSCRIPTION_ACTIVE    = "active"
	SUBSCRIPTION_CANCELLED = "cancelled"
	SUBSCRIPTION_EXPIRED   = "expired"
)

type User struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email              string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password           string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role               string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status             string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	SubscriptionTier   string         `gorm:"type:varchar(50);default:'free'" json:"subscription_tier" validate:"oneof=free premium enterprise"`
	SubscriptionStatus string         `gorm:"type:varchar(50);default:'active'" json:"subscription_status" validate:"oneof=active cancelled expired"`
	LastActivityAt     *time.Time     `gorm:"type:timestamp;index" json:"last_activity_at"`
	LastReminderAt     *time.Time     `gorm:"type:timestamp" json:"-"`
	APIKeyHash         string         `gorm:"type:varchar(128);index" json:"-"`
	APIKeyCreatedAt    *time.Time     `gorm:"type:timestamp" json:"-"`
	LastLoginAt        *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:               username,
		Email:              email,
		Password:           pw,
		Role:               ROLE_USER,
		Status:             STATUS_ACTIVE,
		SubscriptionTier:   TIER_FREE,
		SubscriptionStatus: SUBSCRIPTION_ACTIVE,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// HashAPIKey returns the hex encoded SHA-256 of a raw API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// IssueAPIKey generates a new raw API key, stores its hash on the user and
// returns the raw key. The raw key is only recoverable at issue time.
func (u *User) IssueAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	key := "ek_" + hex.EncodeToString(b)
	u.APIKeyHash = HashAPIKey(key)
	now := time.Now()
	u.APIKeyCreatedAt = &now
	return key, nil
}

// HasActiveAPIKey reports whether the user currently holds a usable API key.
func (u *User) HasActiveAPIKey() bool {
	return u.APIKeyHash != ""
}
