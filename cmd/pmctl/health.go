package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

func init() {
	healthCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "pmapi server URL")
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check pmapi server health",
	Long: `Check the health status of a running pmapi server.

Examples:
  pmctl health
  pmctl health --server http://api.internal:8080`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

// healthResponse matches internal/http HealthResponse.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	url := strings.TrimRight(serverURL, "/") + "/health"

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	out := cmd.OutOrStdout()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(out, "%s %s %s (HTTP %d)\n", red("✗"), health.Service, health.Status, resp.StatusCode)
		return fmt.Errorf("server unhealthy: %s", health.Status)
	}
	fmt.Fprintf(out, "%s %s %s %s\n", green("✓"), health.Service, health.Status, dim(health.Version))
	return nil
}
