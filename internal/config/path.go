package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ExpandPath resolves environment variables and "~/" home shortcuts.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(trimmed)
	if expanded != "~" && !strings.HasPrefix(expanded, "~/") {
		return filepath.Clean(expanded), nil
	}

	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	if expanded == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(expanded, "~/")), nil
}

func homeDir() (string, error) {
	candidates := []func() string{
		func() string {
			h, _ := os.UserHomeDir()
			return h
		},
		func() string {
			if u, err := user.Current(); err == nil {
				return u.HomeDir
			}
			return ""
		},
	}
	for _, candidate := range candidates {
		h := strings.TrimSpace(candidate())
		if h != "" && h != "~" && !strings.HasPrefix(h, "~/") {
			return h, nil
		}
	}
	return "", fmt.Errorf("HOME is not set or not fully resolved")
}
