package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/atelier/internal/core/config"
	"github.com/vietddude/atelier/internal/provider"
	"github.com/vietddude/atelier/internal/routing"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider health and circuit breaker states of a running instance",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/health/detailed", cfg.Server.Port)
	resp, err := client.Get(url)
	if err != nil {
		slog.Error("Failed to reach service", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var detailed struct {
		Status    string                     `json:"status"`
		Providers map[string]provider.Status `json:"providers"`
		Breakers  []routing.BreakerStatus    `json:"breakers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detailed); err != nil {
		slog.Error("Failed to decode health response", "error", err)
		os.Exit(1)
	}

	fmt.Printf("service: %s\n\n", detailed.Status)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROVIDER\tBREAKER\tFAILURES\tAVAILABLE\tERROR RATE\tAVG LATENCY")

	for _, b := range detailed.Breakers {
		p := detailed.Providers[b.Name]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%.2f\t%s\n",
			b.Name, b.StateName, b.FailuresInWindow, p.Available, p.ErrorRate, p.ResponseTime)
	}
	_ = w.Flush()
}
