package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdddj/blog-new/internal/cli/ui"
	"github.com/spf13/cobra"
)

var importSQLCmd = &cobra.Command{
	Use:   "import-sql <file|->",
	Short: "Run a raw SQL script against the target database",
	Long: `Execute a SQL script (a mysqldump or pg_dump excerpt, or hand-written
statements) against the target database, statement by statement.

Session statements of the dump's origin server (SET NAMES, LOCK TABLES, ...)
are dropped. DROP, TRUNCATE and writes to protected tables are rejected and
never executed. A failing statement is reported and the script continues.
Backticks around identifiers are removed.

Examples:
  blogdata import-sql dump.sql
  mysqldump --no-create-info blog tags | blogdata import-sql -`,
	Args: cobra.ExactArgs(1),
	RunE: runImportSQL,
}

func init() {
	importSQLCmd.Flags().String("database-url", "", "Target Postgres URL")
}

func runImportSQL(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig(cmd, "database-url")
	if err != nil {
		return err
	}
	defer closeLog()

	script, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tgt, err := openTarget(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer tgt.Close()

	res := newExchangeService(cfg, tgt, nil, logger).ImportSQL(ctx, string(script))

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	}
	w := cmd.ErrOrStderr()
	symbol := ui.StyleSuccess.Render(ui.SymbolCheck)
	if !res.Success {
		symbol = ui.StyleError.Render(ui.SymbolCross)
	}
	fmt.Fprintf(w, "%s %d executed, %d dropped, %d rejected\n",
		symbol, res.StatementsExecuted, res.StatementsDropped, res.StatementsRejected)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s %s\n", ui.StyleWarning.Render(ui.SymbolWarning), e)
	}
	return nil
}

// readInput reads a file argument, "-" meaning stdin.
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
