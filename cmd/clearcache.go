package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var clearcacheAddr string

// Caches live inside the serve process, so this command goes through the
// admin endpoint of a running server rather than wiring its own pipeline.
var clearcacheCmd = &cobra.Command{
	Use:   "clearcache",
	Short: "Empty the cache pools of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := clearcacheAddr
		if addr == "" {
			addr = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodDelete, addr+"/api/v1/admin/cache", nil)
		if err != nil {
			return eris.Wrap(err, "build request")
		}

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return eris.Wrap(err, "call admin endpoint")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return eris.Errorf("server returned %d: %s", resp.StatusCode, body)
		}

		zap.L().Info("caches cleared", zap.String("server", addr))
		return nil
	},
}

func init() {
	clearcacheCmd.Flags().StringVar(&clearcacheAddr, "server", "", "server base URL (default http://localhost:<port>)")
	rootCmd.AddCommand(clearcacheCmd)
}
