package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harunnryd/hearth/internal/config"
	hearthErrors "github.com/harunnryd/hearth/internal/errors"
)

var validWorkspaceID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateWorkspaceID rejects ids that could not name a single directory
// under the workspace root.
func ValidateWorkspaceID(workspaceID string) error {
	if workspaceID == "" {
		return hearthErrors.InvalidInput("workspace id is required")
	}
	if !validWorkspaceID.MatchString(workspaceID) {
		return hearthErrors.InvalidInput(fmt.Sprintf("workspace id %q may only contain letters, digits, '-' and '_'", workspaceID))
	}
	return nil
}

// ResolveWorkspaceRootPath resolves the configured workspace root path.
// If empty, it falls back to ~/.hearth/workspaces.
func ResolveWorkspaceRootPath(workspaceRootPath string) (string, error) {
	if trimmed := strings.TrimSpace(workspaceRootPath); trimmed != "" {
		return config.ExpandPath(trimmed)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hearth", "workspaces"), nil
}

// GetWorkspacePath returns the base path for a workspace.
func GetWorkspacePath(workspaceID string, workspaceRootPath string) (string, error) {
	if err := ValidateWorkspaceID(workspaceID); err != nil {
		return "", err
	}
	root, err := ResolveWorkspaceRootPath(workspaceRootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, workspaceID), nil
}

func GetEventsDir(workspaceID string, workspaceRootPath string) (string, error) {
	return workspaceSubdir(workspaceID, workspaceRootPath, "events")
}

func GetGovernanceDir(workspaceID string, workspaceRootPath string) (string, error) {
	return workspaceSubdir(workspaceID, workspaceRootPath, "governance")
}

func GetSchedulerDir(workspaceID string, workspaceRootPath string) (string, error) {
	return workspaceSubdir(workspaceID, workspaceRootPath, "scheduler")
}

func workspaceSubdir(workspaceID, workspaceRootPath, name string) (string, error) {
	base, err := GetWorkspacePath(workspaceID, workspaceRootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, name), nil
}
