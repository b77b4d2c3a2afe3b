package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trainloop/trainloop/api/rest"
	"github.com/trainloop/trainloop/api/rest/client"
)

var (
	ctlURL     string
	ctlAPIKey  string
	ctlTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := ctlContext(cmd)
		defer cancel()

		resp, err := newCtlClient().Status(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Run ID:   %s\n", resp.RunID)
		fmt.Printf("Step:     %d\n", resp.Step)
		fmt.Printf("Stopping: %t\n", resp.Stopping)
		fmt.Printf("Closed:   %t\n", resp.Closed)
		fmt.Printf("Elapsed:  %.1fs\n", resp.ElapsedMs/1000)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Request a cooperative stop of a running loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := ctlContext(cmd)
		defer cancel()

		resp, err := newCtlClient().Stop(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Stop requested for run %s\n", resp.RunID)
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show the current metric snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := ctlContext(cmd)
		defer cancel()

		resp, err := newCtlClient().Metrics(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s, step %d\n", resp.RunID, resp.Step)
		names := make([]string, 0, len(resp.Metrics))
		for name := range resp.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			stats := resp.Metrics[name]
			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Printf("  %s:", name)
			for _, k := range keys {
				fmt.Printf(" %s=%g", k, stats[k])
			}
			fmt.Println()
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live step events from a running loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		err := newCtlClient().WatchEvents(ctx, func(event *rest.StepEvent) {
			switch event.Type {
			case rest.EventTypeComplete:
				fmt.Printf("run %s complete at step %d\n", event.RunID, event.Step)
			default:
				fmt.Printf("step %d (%.2fms)\n", event.Step, event.DurationMs)
			}
		})
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func newCtlClient() *client.Client {
	return client.NewClient(&client.Config{
		BaseURL:        ctlURL,
		APIKey:         ctlAPIKey,
		RequestTimeout: ctlTimeout,
	})
}

func ctlContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), ctlTimeout)
}

func init() {
	for _, cmd := range []*cobra.Command{statusCmd, stopCmd, metricsCmd, watchCmd} {
		cmd.Flags().StringVar(&ctlURL, "url", envOr("TL_SERVER_URL", "http://localhost:8080"), "control surface base URL")
		cmd.Flags().StringVar(&ctlAPIKey, "api-key", os.Getenv("TL_API_KEY"), "API key for the control surface")
		cmd.Flags().DurationVar(&ctlTimeout, "timeout", 10*time.Second, "request timeout")
		rootCmd.AddCommand(cmd)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
