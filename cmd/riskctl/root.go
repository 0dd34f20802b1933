package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nyashahama/multimodal-risk-engine/internal/config"
	"github.com/nyashahama/multimodal-risk-engine/internal/engine"
	"github.com/nyashahama/multimodal-risk-engine/internal/gateway"
	"github.com/nyashahama/multimodal-risk-engine/internal/strategy"
)

var (
	cfgFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "riskctl",
	Short: "Run multimodal risk assessments from the command line",
	Long: `riskctl runs the risk inference engine directly against the configured
model backend (Ollama or an OpenAI-compatible API).

Configuration is read the same way as the server: config.yaml, .env and
environment variables such as GATEWAY_PROVIDER and OLLAMA_URL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "yaml" && outputFormat != "json" {
			return fmt.Errorf("unknown output format %q: use yaml or json", outputFormat)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "log gateway and engine activity to stderr",
	)

	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(healthCmd)
}

// newLogger discards logs unless --verbose is set, so stdout stays parseable.
func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// setup loads configuration and builds the gateway and engine.
func setup() (gateway.Client, *engine.Engine, error) {
	logger := newLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	gw := cfg.NewGateway(logger)

	eng, err := engine.New(strategy.Builtin(gw, strategy.Config{Model: cfg.Model()}, logger), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: %w", err)
	}
	return gw, eng, nil
}

// output writes v to w in the selected format.
func output(w io.Writer, v any) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		// Round-trip through JSON so YAML keys follow the json tags.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	}
}
