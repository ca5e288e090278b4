package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Current returns a copy of the active session and whether one is set.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.active.Username != ""
}

// IsExpired reports whether the active session's access token needs a
// refresh. An empty session counts as expired.
func (s *Store) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.IsExpired(time.Now())
}

// Load reads the session pointed to by current_user into memory. It
// returns ErrNoCurrentUser when no account is active.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	var current CurrentUser
	if err := s.db.WithContext(ctx).First(&current).Error; err != nil {
		return nil, convertNotFoundError(err, ErrNoCurrentUser)
	}

	var sess Session
	if err := s.db.WithContext(ctx).First(&sess, "username = ?", current.Username).Error; err != nil {
		// A dangling pointer row reads as "nobody logged in".
		return nil, convertNotFoundError(err, ErrNoCurrentUser)
	}

	s.mu.Lock()
	s.active = sess
	s.mu.Unlock()

	return &sess, nil
}

// Save upserts a session row keyed by username. When the saved session
// belongs to the active account the in-memory copy follows.
func (s *Store) Save(ctx context.Context, sess Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&sess).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.mu.Lock()
	if s.active.Username == sess.Username {
		s.active = sess
	}
	s.mu.Unlock()

	return nil
}

// SetCurrentUser points current_user at the given account and loads its
// session into memory. Setting the already-current user is a no-op. The
// account must have a stored session.
func (s *Store) SetCurrentUser(ctx context.Context, username string) error {
	var sess Session
	if err := s.db.WithContext(ctx).First(&sess, "username = ?", username).Error; err != nil {
		return convertNotFoundError(err, ErrUserNotFound)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current CurrentUser
		err := tx.First(&current).Error
		switch {
		case err == nil && current.Username == username:
			return nil
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		// Single-row semantics: wipe and re-insert.
		if err := tx.Exec("DELETE FROM current_user").Error; err != nil {
			return err
		}
		return tx.Create(&CurrentUser{Username: username}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to set current user: %w", err)
	}

	s.mu.Lock()
	s.active = sess
	s.mu.Unlock()

	return nil
}

// ChangeAccount switches the active drive account and returns the newly
// active session. It returns ErrUserNotFound for unknown usernames.
func (s *Store) ChangeAccount(ctx context.Context, username string) (Session, error) {
	if err := s.SetCurrentUser(ctx, username); err != nil {
		return Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, nil
}

// RemoveUser deletes an account's session. An empty username targets
// the current user. When the removed account was active, any remaining
// session is promoted; with none left the store returns to the
// logged-out state.
func (s *Store) RemoveUser(ctx context.Context, username string) error {
	if username == "" {
		s.mu.RLock()
		username = s.active.Username
		s.mu.RUnlock()
	}
	if username == "" {
		return ErrNoCurrentUser
	}

	var fallback *Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("username = ?", username).Delete(&Session{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		var current CurrentUser
		err := tx.First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if current.Username != username {
			return nil
		}

		// The removed account was active; promote any remaining session.
		if err := tx.Exec("DELETE FROM current_user").Error; err != nil {
			return err
		}

		var next Session
		err = tx.Order("username").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		fallback = &next
		return tx.Create(&CurrentUser{Username: next.Username}).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to remove user: %w", err)
	}

	s.mu.Lock()
	if s.active.Username == username {
		if fallback != nil {
			s.active = *fallback
		} else {
			s.active = Session{}
		}
	}
	s.mu.Unlock()

	return nil
}

// ListSessions returns every stored account ordered by username.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := s.db.WithContext(ctx).Order("username").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
