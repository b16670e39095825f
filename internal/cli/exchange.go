package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdddj/blog-new/internal/blogmigrate"
	"github.com/mdddj/blog-new/internal/cli/ui"
	"github.com/mdddj/blog-new/internal/migrate"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the target database as a JSON bundle",
	Long: `Write every exchangeable table of the target database to a JSON bundle.
Users are never exported.

Examples:
  blogdata export --out blog.json
  blogdata export > blog.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <bundle.json|->",
	Short: "Import a JSON bundle into the target database",
	Long: `Upsert the sections of a JSON bundle (as written by "blogdata export")
into the target database. Sections that are missing or null in the bundle are
left alone. A report is written like for "blogdata migrate".`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	exportCmd.Flags().String("database-url", "", "Target Postgres URL")
	exportCmd.Flags().StringP("out", "o", "", "Write the bundle to this file instead of stdout")

	importCmd.Flags().String("database-url", "", "Target Postgres URL")
	importCmd.Flags().String("report", "", "Markdown report path (default migration_report.md)")
	importCmd.Flags().Int("concurrency", 0, "Rows upserted in parallel per table")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig(cmd, "database-url")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tgt, err := openTarget(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer tgt.Close()

	b, err := newExchangeService(cfg, tgt, nil, logger).Export(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s Exported %d sections to %s (%s)\n",
		ui.StyleSuccess.Render(ui.SymbolCheck), len(b.Sections()), out, migrate.FormatBytes(int64(buf.Len())))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig(cmd, "database-url", "report", "concurrency")
	if err != nil {
		return err
	}
	defer closeLog()

	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	b, err := blogmigrate.DecodeBundle(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if b.Version > blogmigrate.BundleVersion {
		logger.Warn("bundle is newer than this binary, unknown fields are ignored",
			"bundle_version", b.Version, "supported", blogmigrate.BundleVersion)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tgt, err := openTarget(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer tgt.Close()

	jsonOut, _ := cmd.Flags().GetBool("json")
	var progress migrate.ProgressReporter = migrate.NewCLIReporter(cmd.ErrOrStderr())
	if jsonOut {
		progress = migrate.NopReporter{}
	}

	sinks := reportSinks(context.WithoutCancel(ctx), cfg, cfg.Migration.ReportPath, "import", logger)
	report, err := newExchangeService(cfg, tgt, sinks, logger).ImportBundle(ctx, b, progress)
	if report == nil {
		return err
	}
	if err != nil {
		logger.Warn("import interrupted", "error", err)
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
	}
	fmt.Fprint(cmd.ErrOrStderr(), ui.FormatSummary("Import summary", report))
	fmt.Fprintf(cmd.ErrOrStderr(), "\n  Report written to %s\n", cfg.Migration.ReportPath)
	return nil
}
