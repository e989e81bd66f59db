// ABOUTME: API key resolution from the environment and ~/.pi-loop/auth.yaml
// ABOUTME: api_key_env wins, then the credentials file, then <PROVIDER>_API_KEY

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// AuthStore holds API keys by provider.
type AuthStore struct {
	Keys map[string]string `yaml:"keys"` // provider -> api key
}

// LoadAuth reads the credentials file, or returns an empty store if it doesn't exist.
func LoadAuth() (*AuthStore, error) {
	return loadAuthFile(AuthFile())
}

func loadAuthFile(path string) (*AuthStore, error) {
	store := &AuthStore{Keys: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading auth file: %w", err)
	}
	if err := yaml.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("parsing auth file: %w", err)
	}
	if store.Keys == nil {
		store.Keys = make(map[string]string)
	}
	return store, nil
}

// APIKey returns the key for the model's provider.
// A nil store skips the credentials file.
func (a *AuthStore) APIKey(s *Settings, api ai.Api) string {
	if s.APIKeyEnv != "" {
		return os.Getenv(s.APIKeyEnv)
	}
	if a != nil {
		if key := a.Keys[string(api)]; key != "" {
			return key
		}
	}
	return os.Getenv(strings.ToUpper(string(api)) + "_API_KEY")
}
