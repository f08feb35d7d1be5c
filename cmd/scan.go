package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/scan"
)

var (
	scanType   string
	scanID     string
	scanManual bool
	scanFormat string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan one politician or party record",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tt, err := model.ParseTargetType(scanType)
		if err != nil {
			return err
		}
		if scanFormat != "json" && scanFormat != "yaml" {
			return eris.Errorf("unsupported format %q (json or yaml)", scanFormat)
		}
		if err := cfg.Validate("scan"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		out, err := newScanner(st, cfg).Scan(ctx, scan.Request{TargetType: tt, TargetID: scanID, Manual: scanManual})
		if err != nil {
			if out != nil {
				return eris.Wrapf(err, "scan (log %s)", out.LogID)
			}
			return err
		}
		return writeOutcome(os.Stdout, out, scanFormat)
	},
}

// writeOutcome renders a scan outcome as indented JSON or YAML.
func writeOutcome(w io.Writer, out *scan.Outcome, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(out), "encode json")
}

func init() {
	scanCmd.Flags().StringVar(&scanType, "type", "politician", "target type (politician or political_party)")
	scanCmd.Flags().StringVar(&scanID, "id", "", "target id (required)")
	scanCmd.Flags().BoolVar(&scanManual, "manual", true, "record the scan as manual")
	scanCmd.Flags().StringVar(&scanFormat, "format", "json", "output format (json or yaml)")
	_ = scanCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(scanCmd)
}
