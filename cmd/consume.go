package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devfolio/apiserver/config"
	"github.com/devfolio/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// consumeCmd represents the consume command.
var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Runs the project event consumer",
	Long: `Runs the project event consumer. It subscribes to the project
events channel and invalidates cached projects as writes happen on other
instances. Usage:

	devfolio consume
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		consumer, err := server.NewConsumer(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start consumer: %v\n", err)
			os.Exit(1)
		}
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "consumer error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
