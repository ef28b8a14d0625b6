// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: cloudmersive-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/convertease/internal/logger"
)

// CloudmersiveKey is the secret file holding the conversion API key.
const CloudmersiveKey = "cloudmersive-api-key"

// CloudmersiveEnv is the environment variable consulted when neither the
// configuration nor the secrets directory supplies the key.
const CloudmersiveEnv = "CLOUDMERSIVE_API_KEY"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings and skipped.
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
			logger.Warn("could not read secret %s: %v", name, err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// APIKey resolves the conversion API key. An explicitly configured value
// wins, then the secrets directory, then the environment. The returned
// source names where the key came from and is safe to log; the key is not.
func APIKey(configured, dir string) (key, source string, err error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, "config", nil
	}
	loaded, err := Load(dir)
	if err != nil {
		return "", "", err
	}
	if v := loaded[CloudmersiveKey]; v != "" {
		return v, filepath.Join(dir, CloudmersiveKey), nil
	}
	if v := strings.TrimSpace(os.Getenv(CloudmersiveEnv)); v != "" {
		return v, "$" + CloudmersiveEnv, nil
	}
	return "", "", nil
}
