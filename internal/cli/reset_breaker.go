package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/atelier/internal/core/config"
)

var resetBreakerCmd = &cobra.Command{
	Use:   "reset-breaker [provider]",
	Short: "Force-close the circuit breaker for a provider on a running instance",
	Args:  cobra.ExactArgs(1),
	Run:   runResetBreaker,
}

func init() {
	rootCmd.AddCommand(resetBreakerCmd)
}

func runResetBreaker(cmd *cobra.Command, args []string) {
	name := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/v1/breakers/%s/reset", cfg.Server.Port, name)
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		slog.Error("Failed to reach service", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		fmt.Printf("Unknown provider: %s\n", name)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Reset failed with status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset breaker for %s\n", name)
}
