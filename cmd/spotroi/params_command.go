package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spotroi/internal/algorithms"
)

func newParamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "params [operation...]",
		Short:       "List the image operations and their parameters",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = algorithms.Names()
			}
			for _, name := range names {
				if !algorithms.IsValidAlgorithm(name) {
					return fmt.Errorf("unknown operation %q (available: %v)", name, algorithms.Names())
				}
			}

			category := make(map[string]string)
			for c, ids := range algorithms.GetAlgorithmsByCategory() {
				for _, id := range ids {
					category[id] = c
				}
			}

			var rows [][]string
			for _, name := range names {
				alg, _ := algorithms.Get(name)
				for _, p := range alg.GetParameterInfo() {
					rows = append(rows, []string{
						name,
						category[name],
						p.Name,
						fmt.Sprint(p.Default),
						fmt.Sprintf("%v..%v", p.Min, p.Max),
						p.Description,
					})
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Operation", "Category", "Parameter", "Default", "Range", "Description"},
				rows, nil,
			))
			return nil
		},
	}
}
