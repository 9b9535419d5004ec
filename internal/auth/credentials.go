package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Credentials is the on-disk record of a completed device authorization.
type Credentials struct {
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
	TokenType    string    `yaml:"token_type,omitempty"`
	ExpiresAt    time.Time `yaml:"expires_at,omitempty"`
}

// Expired reports whether the access token is past its expiry. Credentials
// without an expiry never expire locally.
func (c *Credentials) Expired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// CredentialsPath returns the credentials file location.
// Returns ~/.config/sidekick/credentials.yml or $XDG_CONFIG_HOME/sidekick/credentials.yml.
func CredentialsPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sidekick", "credentials.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sidekick", "credentials.yml")
}

// SaveCredentials persists creds from a granted token. The file is written
// mode 0600 since it holds secrets.
func SaveCredentials(tok *Token) error {
	creds := &Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if tok.ExpiresIn > 0 {
		creds.ExpiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	path := CredentialsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// LoadCredentials reads the stored credentials. It returns (nil, nil) when
// no credentials file exists.
func LoadCredentials() (*Credentials, error) {
	data, err := os.ReadFile(CredentialsPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return &creds, nil
}

// ClearCredentials removes the stored credentials, if any.
func ClearCredentials() error {
	err := os.Remove(CredentialsPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
