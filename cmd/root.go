package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the devfolio API server.
var rootCmd = &cobra.Command{
	Use:   "devfolio",
	Short: "Backend API for the devfolio portfolio site",
	Long: `devfolio is the backend API for a personal portfolio website.

It serves user authentication (cookie sessions) and the public project
gallery, and runs database migrations.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
