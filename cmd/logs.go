package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/monitoring"
	"github.com/politica-cm/politica-scanner/internal/store"
)

const staleReason = "scan did not complete"

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect and maintain the scan log",
}

// -- logs list --

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scan log entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("logs"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		target, _ := cmd.Flags().GetString("target")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := st.ListScanLogs(ctx, store.ScanLogFilter{
			Status:   model.ScanLogStatus(status),
			TargetID: target,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "logs list")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No scan logs found.")
			return nil
		}

		formatLogsList(os.Stdout, entries)
		return nil
	},
}

// -- logs show --

var logsShowCmd = &cobra.Command{
	Use:   "show <log-id>",
	Short: "Show one scan log entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("logs"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entry, err := st.GetScanLog(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "logs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

// -- logs reap --

var logsReapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Mark pending scan logs older than a cutoff as failed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("logs"); err != nil {
			return err
		}

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			olderThan = time.Duration(cfg.Scan.StaleAfterMins) * time.Minute
		}
		if olderThan <= 0 {
			return eris.New("--older-than must be positive")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.FailStaleScanLogs(ctx, time.Now().Add(-olderThan), staleReason)
		if err != nil {
			return eris.Wrap(err, "logs reap")
		}

		zap.L().Info("stale scan logs failed",
			zap.Int64("count", n),
			zap.Duration("older_than", olderThan),
		)
		return nil
	},
}

// -- logs health --

var logsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Summarize recent scan outcomes and optionally send alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("logs"); err != nil {
			return err
		}

		lookback, _ := cmd.Flags().GetInt("lookback-hours")
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackWindowHours
		}
		alert, _ := cmd.Flags().GetBool("alert")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		collector := monitoring.NewCollector(st, time.Duration(cfg.Scan.StaleAfterMins)*time.Minute)
		snap, err := collector.Collect(ctx, lookback)
		if err != nil {
			return eris.Wrap(err, "logs health")
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)
		if alert {
			alerter.SendAlerts(ctx, alerts)
		}

		return writeHealth(os.Stdout, snap, alerts)
	},
}

func init() {
	logsHealthCmd.Flags().Int("lookback-hours", 0, "window to summarize (default monitoring.lookback_window_hours)")
	logsHealthCmd.Flags().Bool("alert", false, "send triggered alerts to monitoring.webhook_url")

	logsListCmd.Flags().String("status", "", "filter by status (pending, completed, failed)")
	logsListCmd.Flags().String("target", "", "filter by target id")
	logsListCmd.Flags().Int("limit", 50, "max number of entries to display")

	logsReapCmd.Flags().Duration("older-than", 0, "age after which pending entries fail (default scan.stale_after_mins)")

	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsShowCmd)
	logsCmd.AddCommand(logsReapCmd)
	logsCmd.AddCommand(logsHealthCmd)
	rootCmd.AddCommand(logsCmd)
}

// formatLogsList writes a table of scan log entries.
func formatLogsList(out io.Writer, entries []model.ScanLogEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTARGET\tACTION\tSTATUS\tSCORE\tCHANGES\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t------\t-----\t-------\t-------")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%d\t%s\n",
			truncateID(e.ID),
			string(e.TargetType)+"/"+truncateID(e.TargetID),
			e.ActionType,
			e.Status,
			e.AIConfidenceScore,
			len(e.ChangesMade),
			e.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID shortens a UUID to its first 8 characters.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// writeHealth prints a health snapshot with any triggered alerts as JSON.
func writeHealth(out io.Writer, snap *monitoring.ScanSnapshot, alerts []monitoring.Alert) error {
	if alerts == nil {
		alerts = []monitoring.Alert{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*monitoring.ScanSnapshot
		Alerts []monitoring.Alert `json:"alerts"`
	}{snap, alerts})
}
