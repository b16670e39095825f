package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mdddj/blog-new/internal/migrate"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <report.md|report.json>",
	Short: "Render a saved migration report in the terminal",
	Long: `Render a report written by "blogdata migrate" or "blogdata import".
A .json report is converted to markdown first. Output is styled when
stdout is a terminal and plain markdown otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().Bool("raw", false, "Print the markdown without styling")
}

func runReport(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	markdown, err := reportMarkdown(args[0], data)
	if err != nil {
		return err
	}

	raw, _ := cmd.Flags().GetBool("raw")
	if raw || !isTerminal(cmd.OutOrStdout()) {
		fmt.Fprint(cmd.OutOrStdout(), markdown)
		return nil
	}
	rendered, err := glamour.Render(markdown, "dark")
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), markdown)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

func reportMarkdown(name string, data []byte) (string, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".json") {
		return string(data), nil
	}
	var r migrate.Report
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&r); err != nil {
		return "", fmt.Errorf("decoding report %s: %w", name, err)
	}
	return r.Markdown(), nil
}
