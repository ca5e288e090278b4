package session

import (
	"context"

	"github.com/marmos91/telebridge/pkg/onedrive"
)

// RootPath returns the destination folder for the next upload. A
// temporary override wins over the session folder; with consumeTemp the
// override is cleared, so one task insertion uses it and the next falls
// back to the session folder.
func (s *Store) RootPath(consumeTemp bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.active.RootPath
	if s.tempRoot != "" {
		path = s.tempRoot
		if consumeTemp {
			s.tempRoot = ""
		}
	}

	if err := onedrive.ValidateRootPath(path); err != nil {
		return "", err
	}
	return path, nil
}

// SetRootPath changes the active account's folder and persists it.
func (s *Store) SetRootPath(ctx context.Context, path string) error {
	if err := onedrive.ValidateRootPath(path); err != nil {
		return err
	}

	s.mu.RLock()
	sess := s.active
	s.mu.RUnlock()

	if sess.Username == "" {
		return ErrNoCurrentUser
	}

	sess.RootPath = path
	return s.Save(ctx, sess)
}

// SetTempRoot arms a one-shot destination override.
func (s *Store) SetTempRoot(path string) error {
	if err := onedrive.ValidateRootPath(path); err != nil {
		return err
	}

	s.mu.Lock()
	s.tempRoot = path
	s.mu.Unlock()
	return nil
}

// ClearTempRoot drops the override without consuming it.
func (s *Store) ClearTempRoot() {
	s.mu.Lock()
	s.tempRoot = ""
	s.mu.Unlock()
}

// TempRoot returns the pending override, if any.
func (s *Store) TempRoot() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tempRoot, s.tempRoot != ""
}
