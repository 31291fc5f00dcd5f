// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads the Research API client credentials. They come from
// the config (or TIKTOK_METADATA_API_* environment variables), a directory of
// plain-text files where each filename is the key name, or a dotenv file.
//
// Supported key files: tiktok-client-key, tiktok-client-secret.
// Supported dotenv keys: TIKTOK_CLIENT_KEY, TIKTOK_CLIENT_SECRET.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	FileClientKey    = "tiktok-client-key"
	FileClientSecret = "tiktok-client-secret"
	EnvClientKey     = "TIKTOK_CLIENT_KEY"
	EnvClientSecret  = "TIKTOK_CLIENT_SECRET"
)

// ErrMissingCredentials is returned when no source supplied both values.
var ErrMissingCredentials = errors.New("missing TikTok Research API credentials")

// Credentials is the client-credentials pair and where each value came from.
type Credentials struct {
	ClientKey    string
	ClientSecret string
	Sources      []string
}

// Complete reports whether both values are set.
func (c Credentials) Complete() bool {
	return c.ClientKey != "" && c.ClientSecret != ""
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.WithError(err).WithField("secret", name).Warn("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// LoadEnvFile parses a dotenv file without touching the process environment.
// A missing file yields an empty map.
func LoadEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return values, nil
}

// Resolve fills the empty fields of c, in order, from the secrets directory,
// the dotenv file, and the TIKTOK_CLIENT_* process environment. It returns
// ErrMissingCredentials when a value is still missing.
func Resolve(c Credentials, dir, envFile string) (Credentials, error) {
	if c.Complete() {
		c.Sources = append(c.Sources, "config")
		return c, nil
	}
	if c.ClientKey != "" || c.ClientSecret != "" {
		c.Sources = append(c.Sources, "config")
	}

	files, err := Load(dir)
	if err != nil {
		return c, err
	}
	c.fill(files[FileClientKey], files[FileClientSecret], dir)

	if !c.Complete() && envFile != "" {
		env, err := LoadEnvFile(envFile)
		if err != nil {
			return c, err
		}
		c.fill(env[EnvClientKey], env[EnvClientSecret], envFile)
	}

	if !c.Complete() {
		c.fill(os.Getenv(EnvClientKey), os.Getenv(EnvClientSecret), "environment")
	}

	if !c.Complete() {
		return c, fmt.Errorf("%w: set api.client_key and api.client_secret, add %s/%s and %s/%s, or define %s and %s in %s",
			ErrMissingCredentials, dir, FileClientKey, dir, FileClientSecret, EnvClientKey, EnvClientSecret, envFile)
	}
	return c, nil
}

func (c *Credentials) fill(key, secret, source string) {
	used := false
	if c.ClientKey == "" && key != "" {
		c.ClientKey = key
		used = true
	}
	if c.ClientSecret == "" && secret != "" {
		c.ClientSecret = secret
		used = true
	}
	if used {
		c.Sources = append(c.Sources, source)
	}
}
