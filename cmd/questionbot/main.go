package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/questionbot/core/buildinfo"
	corecmd "github.com/m3rciful/questionbot/core/cmd"
)

var configPath string

func options() corecmd.Options {
	return corecmd.Options{ConfigPath: configPath, ConfigEnvVar: "CONFIG_PATH"}
}

var rootCmd = &cobra.Command{
	Use:           "questionbot <command>",
	Short:         "Discord bot that collects community call questions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactions endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return corecmd.Serve(options())
	},
}

var registerCmd = &cobra.Command{
	Use:   "register-commands",
	Short: "Overwrite the application's slash and message commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := corecmd.RegisterCommands(options()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Commands created")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return corecmd.Migrate(options())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $CONFIG_PATH)")
	rootCmd.AddCommand(serveCmd, registerCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
