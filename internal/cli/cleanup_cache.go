package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/atelier/internal/core/config"
)

var (
	cleanupMaxAgeDays int
	cleanupKeepCount  int
)

var cleanupCacheCmd = &cobra.Command{
	Use:   "cleanup-cache",
	Short: "Remove stale or excess prompt cache entries on a running instance",
	Run:   runCleanupCache,
}

func init() {
	cleanupCacheCmd.Flags().IntVar(&cleanupMaxAgeDays, "max-age-days", 0, "remove entries last used more than this many days ago")
	cleanupCacheCmd.Flags().IntVar(&cleanupKeepCount, "keep-count", 0, "keep only the most used entries up to this count")
	rootCmd.AddCommand(cleanupCacheCmd)
}

func runCleanupCache(cmd *cobra.Command, args []string) {
	if cleanupMaxAgeDays <= 0 && cleanupKeepCount <= 0 {
		fmt.Println("At least one of --max-age-days or --keep-count is required")
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/v1/cache/cleanup?max_age_days=%d&keep_count=%d",
		cfg.Server.Port, cleanupMaxAgeDays, cleanupKeepCount)
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		slog.Error("Failed to reach service", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Cleanup failed with status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	var body map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Error("Failed to decode response", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Removed %d cache entries\n", body["removed"])
}
