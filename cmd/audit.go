package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/site-audit/internal/crawler"
	"github.com/sells-group/site-audit/internal/model"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Crawl and audit a single website",
	Long:  "Crawls up to --max-pages pages of a website, runs every check and prints the scored result.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		url, _ := cmd.Flags().GetString("url")
		maxPages, _ := cmd.Flags().GetInt("max-pages")
		format, _ := cmd.Flags().GetString("format")
		noStore, _ := cmd.Flags().GetBool("no-store")

		if url == "" {
			return eris.New("--url is required")
		}
		switch format {
		case formatJSON, formatYAML, formatMarkdown, "md":
		default:
			return eris.Errorf("unknown format %q (want json, yaml or markdown)", format)
		}

		var spin *spinner.Spinner
		if isatty.IsTerminal(os.Stderr.Fd()) {
			spin = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			spin.Suffix = " crawling " + url
			spin.Start()
			defer spin.Stop()
		}
		onPage := func(page model.CrawledPage, collected int) {
			if spin != nil {
				spin.Lock()
				spin.Suffix = fmt.Sprintf(" crawled %d pages (%s)", collected, page.URL)
				spin.Unlock()
			}
		}

		env, err := initAuditEnv(ctx, "audit", !noStore, crawler.WithOnPage(onPage))
		if err != nil {
			return err
		}
		defer env.Close()

		scan, runErr := env.Pipeline.Run(ctx, url, maxPages)
		if spin != nil {
			spin.Stop()
		}
		if runErr != nil {
			if scan != nil && scan.ID != "" {
				fmt.Fprintf(os.Stderr, "scan %s failed\n", scan.ID)
			}
			return eris.Wrap(runErr, "audit")
		}

		if err := writeScan(os.Stdout, scan, format); err != nil {
			return err
		}
		printSummaryLine(os.Stderr, scan)
		return nil
	},
}

func init() {
	auditCmd.Flags().String("url", "", "website URL to audit (required)")
	auditCmd.Flags().Int("max-pages", 0, "maximum pages to crawl (default from config)")
	auditCmd.Flags().String("format", formatJSON, "output format: json, yaml or markdown")
	auditCmd.Flags().Bool("no-store", false, "do not persist the scan")
	rootCmd.AddCommand(auditCmd)
}
