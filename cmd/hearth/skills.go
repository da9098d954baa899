package main

import (
	"fmt"
	"strings"

	"github.com/harunnryd/hearth/internal/app"
	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/skill"
	"github.com/harunnryd/hearth/internal/skill/formatter"

	"github.com/spf13/cobra"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Inspect registered skills",
	Long:  `List the builtin and manifest skills and explain how a request would be routed.`,
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered skills",
	Long:  `Display builtin skills followed by SKILL.md manifests from skills.path, in routing order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, registry, err := skillsSetup(cmd)
		if err != nil {
			return err
		}

		output, err := f.FormatSkills(registry.Infos())
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}

var skillsRankCmd = &cobra.Command{
	Use:   "rank [text]",
	Short: "Score every skill against a request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, registry, err := skillsSetup(cmd)
		if err != nil {
			return err
		}

		intent := skill.NewIntent(ResolveWorkspaceID(cmd), "", strings.Join(args, " "))
		ranked := skill.NewRouter(registry).Rank(intent)

		output, err := f.FormatRanking(formatter.RankRows(ranked))
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)

		if len(ranked) == 0 || ranked[0].Score == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "\nNo skill would handle this request.")
		}
		return nil
	},
}

// skillsSetup builds the registry without opening a workspace store, so it
// works while a daemon is running.
func skillsSetup(cmd *cobra.Command) (formatter.SkillFormatter, *skill.Registry, error) {
	outputFormat, _ := cmd.Flags().GetString("output")
	format, err := formatter.ParseOutputFormat(outputFormat)
	if err != nil {
		return nil, nil, err
	}
	f, err := formatter.NewFormatterFactory().Create(format)
	if err != nil {
		return nil, nil, err
	}

	loaded, err := loadConfigForCommand(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	var skillsCfg config.SkillsConfig
	if loaded != nil {
		skillsCfg = loaded.Skills
	}

	registry, err := app.BuildRegistry(skillsCfg)
	if err != nil {
		return nil, nil, err
	}
	return f, registry, nil
}

func init() {
	skillsCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	skillsCmd.PersistentFlags().StringP("workspace", "w", "", "Target workspace ID")
	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsRankCmd)
	rootCmd.AddCommand(skillsCmd)
}
