package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mdddj/blog-new/internal/cli/ui"
	"github.com/mdddj/blog-new/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print resolved configuration",
	Long: `Load and print the resolved blogdata configuration as TOML.
Shows the result of merging defaults, blogdata.toml, .env, environment
variables and flags. Secrets are masked.`,
	RunE: runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default blogdata.toml",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long: `Get a specific configuration value by dotted key path.
Examples: server.port, database.url, migration.tables, backup.schedule`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in blogdata.toml",
	Long: `Set a configuration value in the blogdata.toml config file.
Creates the file if it doesn't exist.
Examples:
  blogdata config set server.port 9000
  blogdata config set migration.tables categories,tags,blogs
  blogdata config set backup.schedule "0 3 * * *"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

func configPathOf(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	if p == "" {
		return config.DefaultPath
	}
	return p
}

// masked returns a copy of cfg with secrets replaced.
func masked(cfg *config.Config) *config.Config {
	c := *cfg
	for _, s := range []*string{&c.Server.AdminPassword, &c.Server.JWTSecret, &c.Storage.SecretKey} {
		if *s != "" {
			*s = "********"
		}
	}
	return &c
}

func runConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = masked(cfg)

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
	}

	out, err := cfg.ToTOML()
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPathOf(cmd)
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.GenerateDefault(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	value, err := config.GetValue(cfg, args[0])
	if err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"key": args[0], "value": value})
	}

	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	configPath := configPathOf(cmd)
	key := args[0]
	value := args[1]

	if !config.IsValidKey(key) {
		return ui.WithHints(fmt.Errorf("unknown configuration key: %s", key), "blogdata config  (lists every key)")
	}

	if err := config.SetValue(configPath, key, value); err != nil {
		return fmt.Errorf("setting config value: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
	fmt.Fprintf(cmd.OutOrStdout(), "Written to %s\n", configPath)

	// Load validates; report problems without failing so values can be
	// set one at a time.
	if _, err := config.Load(configPath, nil); err != nil {
		parts := strings.SplitN(err.Error(), ": ", 2)
		fmt.Fprintf(cmd.ErrOrStderr(), "Note: %s\n", parts[len(parts)-1])
	}
	return nil
}
