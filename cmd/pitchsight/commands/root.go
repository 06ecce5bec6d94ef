// Package commands implements the CLI commands for the pitchsight binary.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pitchsight",
	Short: "PitchSight - Cricket video analysis pipeline",
	Long: `PitchSight analyzes cricket coaching videos. Coaches upload session
footage through a presigned two-phase handshake; analysis workers extract pose
data, score technique per discipline (batting, bowling, fielding, keeping), and
produce findings and a consolidated report that can be exported as PDF.

The api and worker commands can run in separate processes sharing the same
database, blob bucket and dispatch queue, or be scaled independently.

Use "pitchsight [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/pitchsight/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(initCmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
