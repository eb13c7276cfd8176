package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/anonsearch/cmd/cli/commands"
	"github.com/inferloop/anonsearch/pkg/constants"
)

func main() {
	if err := createRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: constants.AppDescription,
		Long: `A command-line interface for finding the generalization of a dataset that
satisfies privacy criteria such as k-anonymity, l-diversity and t-closeness
with the least information loss.`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+constants.DefaultConfigName+".yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	// Add commands
	rootCmd.AddCommand(commands.NewSearchCmd(&cfgFile))
	rootCmd.AddCommand(commands.NewValidateCmd(&cfgFile))
	rootCmd.AddCommand(commands.NewLatticeCmd())
	rootCmd.AddCommand(commands.NewAlgorithmsCmd())

	return rootCmd
}
