package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nyashahama/multimodal-risk-engine/internal/strategy"
)

var (
	analyzeStrategy string
	analyzeImage    string
	analyzeWeight   float64
	analyzeMeta     []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one strategy against an image",
	Example: `  riskctl analyze --strategy zero_shot_risk_assessment --image scan.jpg --weight-kg 75
  riskctl analyze --strategy few_shot_indicator_analysis --image scan.jpg \
      --weight-kg 75 --meta age=45 --meta sex=F -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		md, err := metadataFromFlags(analyzeWeight, analyzeMeta)
		if err != nil {
			return err
		}

		image, err := os.ReadFile(analyzeImage)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}

		_, eng, err := setup()
		if err != nil {
			return err
		}
		if !eng.Has(analyzeStrategy) {
			return fmt.Errorf("%s", eng.NotFoundMessage(analyzeStrategy))
		}

		res := eng.Run(cmd.Context(), image, md, analyzeStrategy)
		if err := output(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("analysis failed: %s", res.Error)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeStrategy, "strategy", "s", "", "strategy name (see 'riskctl strategies')")
	analyzeCmd.Flags().StringVarP(&analyzeImage, "image", "i", "", "path to the image file")
	analyzeCmd.Flags().Float64Var(&analyzeWeight, "weight-kg", 0, "subject weight in kilograms")
	analyzeCmd.Flags().StringArrayVarP(&analyzeMeta, "meta", "m", nil, "additional metadata as key=value (repeatable)")
	_ = analyzeCmd.MarkFlagRequired("strategy")
	_ = analyzeCmd.MarkFlagRequired("image")
	_ = analyzeCmd.MarkFlagRequired("weight-kg")
}

// metadataFromFlags builds the run metadata: weight_kg first, then each
// --meta pair in the order given. Values that parse as numbers or booleans
// keep that type.
func metadataFromFlags(weight float64, pairs []string) (strategy.Metadata, error) {
	if math.IsNaN(weight) || weight <= 0 || weight > 500 {
		return strategy.Metadata{}, fmt.Errorf("--weight-kg must be greater than 0 and at most 500")
	}
	md := strategy.NewMetadata(strategy.Entry{Key: "weight_kg", Value: weight})
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return strategy.Metadata{}, fmt.Errorf("invalid --meta %q: want key=value", pair)
		}
		if key == "weight_kg" {
			continue
		}
		md.Set(key, parseScalar(strings.TrimSpace(value)))
	}
	return md, nil
}

func parseScalar(s string) any {
	if _, err := strconv.ParseFloat(s, 64); err == nil && json.Valid([]byte(s)) {
		return json.Number(s)
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
