package main

import (
	"strings"

	"github.com/harunnryd/hearth/internal/config"

	"github.com/spf13/cobra"
)

func ResolveWorkspaceID(cmd *cobra.Command) string {
	if workspaceID, _ := cmd.Flags().GetString("workspace"); strings.TrimSpace(workspaceID) != "" {
		return strings.TrimSpace(workspaceID)
	}

	return config.DefaultWorkspaceID
}
