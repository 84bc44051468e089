package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/satquiz/internal/concepts"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Apply queued concept-mastery updates from RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefetch, _ := cmd.Flags().GetInt("prefetch")
		queue, _ := cmd.Flags().GetString("queue")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.MQ == nil {
			return fmt.Errorf("worker needs a reachable broker: set SATQUIZ_AMQP_URL")
		}
		if queue == "" {
			queue = a.Config.ConceptQueue
		}

		deliveries, err := a.MQ.Consume(queue, prefetch)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.Logger.Info("consuming concept updates", "queue", queue, "prefetch", prefetch)
		err = concepts.NewConsumer(a.Tallies, a.Logger).Run(ctx, deliveries)
		if errors.Is(err, context.Canceled) {
			a.Logger.Info("worker stopped")
			return nil
		}
		return err
	},
}

func init() {
	workerCmd.Flags().Int("prefetch", 16, "Unacknowledged messages in flight")
	workerCmd.Flags().String("queue", "", "Queue name (default: SATQUIZ_CONCEPT_QUEUE)")
}
