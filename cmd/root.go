package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/politica-cm/politica-scanner/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "politica-scanner",
	Short: "Verify politician and party records against trusted sources",
	Long:  "Searches Cameroonian government and public-media sites for evidence about politician and party records, scores each field, applies confident corrections and keeps a verification ledger.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
