package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/roster"
	"github.com/politica-cm/politica-scanner/internal/store"
)

var (
	importFilePath   string
	importTargetType string
	importSheet      string
)

// importFile is the YAML layout accepted by the import command.
type importFile struct {
	Politicians []model.Politician     `yaml:"politicians"`
	Parties     []model.PoliticalParty `yaml:"parties"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load politician and party records from a YAML, CSV or XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		targets, err := loadTargets(importFilePath, importTargetType, importSheet)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		saved, err := importTargets(ctx, st, targets)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.Int("saved", saved),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

// loadTargets reads a YAML import file, or a CSV/XLSX roster whose rows are
// all of the given target type.
func loadTargets(path, targetType, sheet string) ([]model.Target, error) {
	if !roster.Supported(path) {
		return readImportFile(path)
	}
	tt, err := model.ParseTargetType(targetType)
	if err != nil {
		return nil, eris.Wrap(err, "import")
	}
	return roster.ReadFile(path, tt, roster.Options{SheetName: sheet})
}

// readImportFile parses and validates a YAML import file.
func readImportFile(path string) ([]model.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read import file")
	}
	var f importFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "parse import file")
	}

	targets := make([]model.Target, 0, len(f.Politicians)+len(f.Parties))
	for i, p := range f.Politicians {
		if p.ID == "" || p.Name == "" {
			return nil, eris.Errorf("politicians[%d]: id and name are required", i)
		}
		if p.Status == "" {
			p.Status = string(model.StatusActive)
		}
		targets = append(targets, model.PoliticianTarget(p))
	}
	for i, p := range f.Parties {
		if p.ID == "" || p.Name == "" {
			return nil, eris.Errorf("parties[%d]: id and name are required", i)
		}
		targets = append(targets, model.PartyTarget(p))
	}
	return targets, nil
}

// importTargets saves every target in one transaction.
func importTargets(ctx context.Context, st store.Store, targets []model.Target) (int, error) {
	err := st.InTx(ctx, func(tx store.Store) error {
		for _, t := range targets {
			if err := tx.SaveTarget(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, eris.Wrap(err, "import targets")
	}
	return len(targets), nil
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to .yaml, .csv or .xlsx file (required)")
	importCmd.Flags().StringVar(&importTargetType, "type", string(model.TargetPolitician), "row type for CSV/XLSX rosters (politician or political_party)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
