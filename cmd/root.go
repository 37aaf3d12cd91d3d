package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/exa-sheets/internal/config"
)

var cfg *config.Config

var (
	offline bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "exa-sheets",
	Short: "Fill company data-point spreadsheets from a question-answering API",
	Long: "Reads a sheet whose first column lists companies and whose header names data points, " +
		"asks the configured answer provider one question per cell and writes the filled sheet. " +
		"Sessions persist progress so a sample can be reviewed before filling the rest.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if offline {
			c.Answer.Provider = "stub"
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "answer with the deterministic stub provider instead of a remote API")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "disable progress bars")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
