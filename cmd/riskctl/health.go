package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type healthResult struct {
	Available bool    `json:"available"`
	LatencyMs int64   `json:"latency_ms"`
	Error     *string `json:"error,omitempty"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the model backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, _, err := setup()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		start := time.Now()
		pingErr := gw.Ping(ctx)
		res := healthResult{
			Available: pingErr == nil,
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if pingErr != nil {
			msg := pingErr.Error()
			res.Error = &msg
		}
		if err := output(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if pingErr != nil {
			return fmt.Errorf("model backend unavailable")
		}
		return nil
	},
}
