package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/exa-sheets/internal/fill"
	"github.com/sells-group/exa-sheets/internal/ui"
)

var (
	populateInput       string
	populateOutput      string
	populateConcurrency int
)

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Fill every row of a sheet in one pass and write the result",
	Long: "Reads --input (.xlsx or .csv), resolves every data-point cell through the answer provider " +
		"and writes --output. Cells with no usable answer are written as NA. " +
		"On interrupt the partially filled sheet is still written.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		filler, err := initFiller(populateConcurrency)
		if err != nil {
			return err
		}

		bar := ui.NewCellBar(quiet)
		bar.Start("populate", -1)
		out, err := fill.PopulateSheet(ctx, filler.With(fill.WithCellHook(bar.Advance)), populateInput, populateOutput)
		bar.Done()

		wrote, err := populateResult(cmd.OutOrStdout(), out, populateOutput, bar.Unavailable(), err)
		if wrote {
			fmt.Fprintf(os.Stderr, "Answered %d cells, estimated spend $%.4f.\n", bar.Written(), estimateSpend(bar.Written()))
		}
		return err
	},
}

func init() {
	populateCmd.Flags().StringVarP(&populateInput, "input", "i", "", "input sheet (.xlsx or .csv)")
	populateCmd.Flags().StringVarP(&populateOutput, "output", "o", "output.xlsx", "output sheet (.xlsx or .csv)")
	populateCmd.Flags().IntVar(&populateConcurrency, "concurrency", 0, "parallel questions (0 uses fill.concurrency)")
	_ = populateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(populateCmd)
}
