// Package credentials persists the console's only durable client state:
// the bearer token and the logged-in user's profile.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matthewbaird/collegeadmin/internal/record"
)

// Credentials is the persisted login.
type Credentials struct {
	Token string        `json:"token"`
	User  record.Record `json:"user,omitempty"`
}

// Empty reports whether there is no token.
func (c *Credentials) Empty() bool {
	return c == nil || c.Token == ""
}

// Email returns the user's email, or "".
func (c *Credentials) Email() string {
	if c == nil {
		return ""
	}
	return c.User.String("email")
}

// File is a credentials file on disk.
type File struct {
	Path string
}

// Load reads the file. A missing file yields empty credentials.
func (f File) Load() (*Credentials, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return &Credentials{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parsing credentials %s: %w", f.Path, err)
	}
	return &c, nil
}

// Save writes the credentials with owner-only permissions. The password
// field is never persisted.
func (f File) Save(c *Credentials) error {
	out := Credentials{Token: c.Token, User: c.User.Clone()}
	delete(out.User, "password")
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating credentials dir: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Clear removes the file. Clearing a missing file is not an error.
func (f File) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}
