package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/report"
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Inspect stored scans",
	Long:  "Commands for listing, viewing, and exporting persisted scans.",
}

// -- scans list --

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scans, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		scans, err := st.ListScans(ctx, model.ScanFilter{
			Status: model.ScanStatus(status),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "scans list")
		}

		if len(scans) == 0 {
			fmt.Fprintln(os.Stderr, "No scans found.")
			return nil
		}

		formatScansList(os.Stdout, scans)
		return nil
	},
}

// -- scans show --

var scansShowCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show one scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scan, err := st.GetScan(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "scans show")
		}

		format, _ := cmd.Flags().GetString("format")
		return writeScan(os.Stdout, scan, format)
	},
}

// -- scans export --

var scansExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scans to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("xlsx")
		if path == "" {
			return eris.New("--xlsx is required")
		}
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scans, err := st.ListScans(ctx, model.ScanFilter{Status: model.ScanStatus(status), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "scans export")
		}

		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "scans export: create file")
		}
		if err := report.WriteXLSX(f, scans); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "scans export: close file")
		}

		fmt.Fprintf(os.Stderr, "Exported %d scans to %s\n", len(scans), path)
		return nil
	},
}

func formatScansList(w io.Writer, scans []model.Scan) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tURL\tSTATUS\tSCORE\tISSUES\tCREATED")
	for _, sc := range scans {
		score, issues := "-", "-"
		if sc.Result != nil {
			score = fmt.Sprintf("%d", sc.Result.Summary.Score)
			issues = fmt.Sprintf("%d", len(sc.Result.Summary.Issues))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			sc.ID, sc.URL, sc.Status, score, issues, sc.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func init() {
	scansListCmd.Flags().String("status", "", "filter by status (queued, crawling, analyzing, complete, failed)")
	scansListCmd.Flags().Int("limit", 20, "maximum scans to list")
	scansListCmd.Flags().Int("offset", 0, "scans to skip")

	scansShowCmd.Flags().String("format", formatJSON, "output format: json, yaml or markdown")

	scansExportCmd.Flags().String("xlsx", "", "output workbook path (required)")
	scansExportCmd.Flags().String("status", "", "filter by status")
	scansExportCmd.Flags().Int("limit", 1000, "maximum scans to export")

	scansCmd.AddCommand(scansListCmd, scansShowCmd, scansExportCmd)
	rootCmd.AddCommand(scansCmd)
}
