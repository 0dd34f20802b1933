package main

import (
	"github.com/spf13/cobra"
)

type strategyInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies and their output fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, eng, err := setup()
		if err != nil {
			return err
		}

		descriptions := eng.ListStrategies()
		out := make([]strategyInfo, 0, len(descriptions))
		for _, name := range eng.Names() {
			info := strategyInfo{Name: name, Description: descriptions[name]}
			if s, ok := eng.Schema(name); ok {
				for _, f := range s.Fields {
					info.Fields = append(info.Fields, f.Name)
				}
			}
			out = append(out, info)
		}
		return output(cmd.OutOrStdout(), out)
	},
}
