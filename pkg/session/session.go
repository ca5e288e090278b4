package session

import (
	"fmt"
	"time"

	"github.com/marmos91/telebridge/pkg/onedrive"
)

// expirySkew is how early a session counts as expired. Tokens are
// refreshed this far ahead of their deadline so an upload request never
// races the expiry.
const expirySkew = 60 * time.Second

// Session holds one drive account's OAuth credentials and its
// destination folder.
type Session struct {
	// Username is the account's principal name on the drive.
	Username string `gorm:"primaryKey;size:255"`

	// ExpirationTimestamp is when AccessToken stops working.
	ExpirationTimestamp time.Time `gorm:"not null"`

	AccessToken  string `gorm:"not null"`
	RefreshToken string `gorm:"not null"`

	// RootPath is the account's upload folder.
	RootPath string `gorm:"not null"`
}

// TableName specifies the table name for GORM.
func (Session) TableName() string {
	return "sessions"
}

// Validate checks the session fields before persisting.
func (s *Session) Validate() error {
	if s.Username == "" {
		return fmt.Errorf("username is required")
	}
	if s.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	return onedrive.ValidateRootPath(s.RootPath)
}

// IsExpired reports whether the access token needs a refresh at the
// given time.
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpirationTimestamp.Before(now.Add(expirySkew))
}

// CurrentUser is the single-row table naming the active session.
type CurrentUser struct {
	Username string `gorm:"primaryKey;size:255"`
}

// TableName specifies the table name for GORM.
func (CurrentUser) TableName() string {
	return "current_user"
}
