// caidiag inspects agent content and diagnoses scripts offline.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "caidiag",
	Short: "Offline tools for the Cadence dialogue agent",
	Long: `caidiag runs parts of the Cadence agent without the server.

It diagnoses a failing script the way the agent would, checks authored
dialogue content for dangling references and searches the sound catalog.

Paths default to DIALOGUE_CONTENT and SOUND_CATALOG from the environment
or a .env file; the embedded content is used when they are unset.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(soundsCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
