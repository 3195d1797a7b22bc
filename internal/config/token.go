package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
)

// LoadToken reads a bearer token stored by SaveToken. A missing file yields
// an empty token and no error.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken persists token with 0600 permissions. An empty token removes the file.
func SaveToken(path, token string) error {
	if path == "" {
		return errors.New("token path is empty")
	}
	if token == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return WriteFileAtomic(path, []byte(token+"\n"))
}
