package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hearth",
	Short: "Family assistant with an approval gate",
	Long: `Hearth routes what a family member asks for to the best matching skill.
Actions that call, book or post on someone's behalf wait for approval, and
outside high risk they are held until quiet hours end. Wellness logs are
rolled up into a daily family score.

Run "hearth daemon" for the long-lived service, or "hearth ask" and
"hearth chat" to work against a workspace directly.`,
	Example: `  hearth ask -m mom "book a ride to the airport"
  hearth approvals list
  hearth quiet-hours --at 23:30`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hearth/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("server.port", config.DefaultServerPort, "server port")
	rootCmd.PersistentFlags().String("server.url", config.DefaultServerURL, "daemon URL used by client commands")
	rootCmd.PersistentFlags().String("quiet_hours.start", "", "quiet hours start (HH:MM), overrides config")
	rootCmd.PersistentFlags().String("quiet_hours.end", "", "quiet hours end (HH:MM), overrides config")
}
