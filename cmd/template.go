package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/exa-sheets/internal/sheetio"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a sample input sheet",
	Long:  "Writes a sheet with a Company column, one row per company and empty data-point columns.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")
		companies, _ := cmd.Flags().GetStringSlice("companies")
		dataPoints, _ := cmd.Flags().GetStringSlice("data-points")

		g, err := sheetio.WriteTemplate(output, companies, dataPoints)
		if err != nil {
			return eris.Wrap(err, "template")
		}

		fmt.Fprintf(os.Stderr, "Wrote %s with %d companies and %d data points.\n", output, g.Len(), len(g.Attributes()))
		return nil
	},
}

func init() {
	templateCmd.Flags().StringP("output", "o", "sample_input.xlsx", "output sheet (.xlsx or .csv)")
	templateCmd.Flags().StringSlice("companies", nil, "company names (defaults to a built-in list)")
	templateCmd.Flags().StringSlice("data-points", nil, "data point columns (defaults to a built-in list)")
	rootCmd.AddCommand(templateCmd)
}
