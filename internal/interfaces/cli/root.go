// Package cli implements the medrx command tree.  One binary carries every
// process role: the HTTP API server (serve), the reminder worker (worker),
// schema migrations (migrate) and a one-shot extraction mode (extract) that
// needs no infrastructure at all.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/MedRx-Intelligence/internal/config"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
}

// CLIContext carries the initialised dependencies through the command tree.
// Config is nil when no configuration could be loaded; commands that need
// infrastructure surface ConfigErr, commands that do not keep working.
type CLIContext struct {
	Config       *config.Config
	ConfigErr    error
	ConfigPath   string
	Logger       logging.Logger
	Options      *RootOptions
	OutputFormat string
	Verbose      bool
}

// NewRootCommand creates the root cobra command with all global flags and
// subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "medrx",
		Short: "Prescription digitization and medication adherence platform",
		Long: "MedRx-Intelligence turns free-form prescription text into structured\n" +
			"medication records, materialises dose reminders from them and tracks\n" +
			"adherence over time.  The same binary runs the API server, the reminder\n" +
			"worker, schema migrations and a stand-alone extraction mode.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./medrx.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "timeout for one-shot operations")

	cmd.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newMigrateCmd(),
		newExtractCmd(),
		newVersionCmd(),
	)

	return cmd
}

// persistentPreRun loads configuration, builds the CLI logger and stores the
// CLIContext on the command's context.  A missing configuration is tolerated
// here so that extract and version keep working on a bare machine; commands
// that need infrastructure check requireConfig.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfg, path, cfgErr := loadConfig(opts)
	if cfgErr != nil && path != "" {
		// The user pointed at a file (or one was discovered) and it failed to
		// parse or validate; that must never be silently ignored.
		return fmt.Errorf("config initialisation failed: %w", cfgErr)
	}

	logger, err := newCLILogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("logger initialisation failed: %w", err)
	}
	logging.SetDefault(logger)

	if cfgErr != nil {
		logger.Debug("no usable configuration; infrastructure commands will fail", logging.Err(cfgErr))
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		ConfigErr:    cfgErr,
		ConfigPath:   path,
		Logger:       logger,
		Options:      opts,
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
	}

	ctx := context.WithValue(cmd.Context(), cliContextKey{}, cliCtx)
	cmd.SetContext(ctx)

	return nil
}

// loadConfig resolves configuration with priority: explicit --config flag,
// then discovered files, then MEDRX_* environment variables.  The returned
// path is non-empty when a file was involved.
func loadConfig(opts *RootOptions) (*config.Config, string, error) {
	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		return cfg, opts.ConfigPath, err
	}

	for _, p := range defaultConfigPaths() {
		if _, statErr := os.Stat(p); statErr == nil {
			cfg, err := config.Load(p)
			return cfg, p, err
		}
	}

	cfg, err := config.LoadFromEnv()
	return cfg, "", err
}

// defaultConfigPaths lists the search locations checked when --config is not
// given, in priority order.
func defaultConfigPaths() []string {
	paths := []string{"./medrx.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".medrx", "config.yaml"))
	}
	return append(paths, "/etc/medrx/config.yaml")
}

// newCLILogger builds the console logger used by the command tree itself.
// It writes to stderr so command output on stdout stays machine-parseable.
// Long-running commands (serve, worker) replace it with the configured
// service logger once they start.
func newCLILogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := opts.LogLevel
	if level == "" && cfg != nil {
		level = cfg.Log.Level
	}
	if opts.Verbose {
		level = "debug"
	}

	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts the CLIContext stored by persistentPreRun.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, fmt.Errorf("command context is nil")
	}

	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, fmt.Errorf("CLI context not initialised; was PersistentPreRunE skipped?")
	}

	return cliCtx, nil
}

// requireConfig returns the loaded configuration or the load failure that
// was deferred in persistentPreRun.
func requireConfig(cliCtx *CLIContext) (*config.Config, error) {
	if cliCtx.Config != nil {
		return cliCtx.Config, nil
	}
	if cliCtx.ConfigErr != nil {
		return nil, fmt.Errorf("configuration required: %w", cliCtx.ConfigErr)
	}
	return nil, fmt.Errorf("configuration required but none was loaded")
}

// Execute is the entry point used by cmd/medrx.
func Execute() error {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output helpers
// ─────────────────────────────────────────────────────────────────────────────

// tableProvider lets a result type opt into table rendering.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult writes data to stdout in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		// No context — fall back to JSON so the data is never lost.
		return printJSON(cmd, data)
	}

	switch strings.ToLower(cliCtx.OutputFormat) {
	case "json":
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

func printTable(cmd *cobra.Command, data interface{}) error {
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder

	for i, h := range headers {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(padRight(h, colWidths[i]))
	}
	sb.WriteString("\n")

	for i, w := range colWidths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("\n")

	for _, row := range rows {
		for i := 0; i < len(headers); i++ {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(row) {
				val = row[i]
			}
			sb.WriteString(padRight(val, colWidths[i]))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
