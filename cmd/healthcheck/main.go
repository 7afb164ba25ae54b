package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/infra/resilience"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
		retries int
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Smoke-check a running IPTU BFA",
		Long: `Posts a dummy simulation and a dummy debts query to a running server
and reports how each answered. Exits 1 when the simulation fails with a
5xx or cannot be reached.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &checker{
				baseURL: baseURL,
				client:  &http.Client{Timeout: timeout},
				retry:   resilience.Config{MaxRetries: retries, InitialBackoff: 500 * time.Millisecond},
				out:     cmd.OutOrStdout(),
			}
			return c.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", envOr("HEALTHCHECK_BASE_URL", "http://127.0.0.1:8080"), "BFA base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "Per-request timeout")
	cmd.Flags().IntVar(&retries, "retries", 2, "Retries on transport failures")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
