package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pweiskircher/jira-bridge/internal/cli/middleware"
	"github.com/pweiskircher/jira-bridge/internal/commands"
	"github.com/pweiskircher/jira-bridge/internal/config"
	"github.com/pweiskircher/jira-bridge/internal/contracts"
	"github.com/pweiskircher/jira-bridge/internal/lock"
	"github.com/pweiskircher/jira-bridge/internal/logging"
	"github.com/pweiskircher/jira-bridge/internal/output"
)

// AppContext carries the process-level dependencies of the CLI. Tests
// inject writers, a fixed clock, a workspace directory and a quiet
// logger; main supplies the real ones.
type AppContext struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Now     func() time.Time
	WorkDir string

	// Logger overrides the flag-driven logger when set.
	Logger *zap.Logger
}

type GlobalFlags struct {
	JSON    bool
	Verbose bool
	Config  string
}

type executionState struct {
	global      GlobalFlags
	commandName string
	dryRun      bool
}

func (state *executionState) outputMode() contracts.OutputMode {
	if state.global.JSON {
		return contracts.OutputModeJSON
	}
	return contracts.OutputModeHuman
}

func (state *executionState) resolvedCommandName() string {
	if state.commandName != "" {
		return state.commandName
	}
	return "root"
}

// commandRun produces the report for one command invocation. The logger
// is already configured for the requested verbosity.
type commandRun func(ctx context.Context, logger *zap.Logger) (output.Report, error)

// Run executes the CLI using shared output and exit-code plumbing.
func Run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) int {
	app := normalizeAppContext(AppContext{
		Stdout: stdout,
		Stderr: stderr,
		Now:    time.Now,
	})

	root, state := newRootCommand(app)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return int(contracts.ExitCodeSuccess)
	}

	var exitErr *codedExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code)
	}

	// Flag parse failures and unknown commands never reach a command
	// runner, so render them here.
	report := output.Report{CommandName: state.resolvedCommandName(), DryRun: state.dryRun}
	if renderErr := output.Write(state.outputMode(), app.Stdout, app.Stderr, report, 0, err); renderErr != nil {
		_, _ = fmt.Fprintln(app.Stderr, output.FormatDiagnostic(renderErr))
	}

	return int(contracts.ExitCodeFatal)
}

// NewRootCommand constructs the Cobra command tree for the CLI.
func NewRootCommand(app AppContext) *cobra.Command {
	root, _ := newRootCommand(app)
	return root
}

func newRootCommand(app AppContext) (*cobra.Command, *executionState) {
	app = normalizeAppContext(app)
	state := &executionState{}

	root := &cobra.Command{
		Use:           "jira-bridge",
		Short:         "Synchronize issues between two Jira sites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&state.global.JSON, "json", false, "emit machine-readable JSON envelope output")
	root.PersistentFlags().BoolVar(&state.global.Verbose, "verbose", false, "log at debug level with the console encoder")
	root.PersistentFlags().StringVar(&state.global.Config, "config", "", "path to the bridge config file")

	root.AddCommand(
		newSyncCommand(app, state),
		newWatchCommand(app, state),
		newCheckCommand(app, state),
		newValidateCommand(app, state),
		newFieldsCommand(app, state),
		newInspectCommand(app, state),
	)

	return root, state
}

func newSyncCommand(app AppContext, state *executionState) *cobra.Command {
	options := commands.SyncOptions{}

	cmd := &cobra.Command{
		Use:   string(contracts.CommandSync),
		Short: "Run one field and attachment sync pass between the sites",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			state.commandName = string(contracts.CommandSync)
			state.dryRun = options.DryRun
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), app, state, contracts.CommandSync, func(ctx context.Context, logger *zap.Logger) (output.Report, error) {
				options.ConfigPath = state.global.Config
				options.Logger = logger
				options.Now = app.Now
				return commands.RunSync(ctx, app.WorkDir, options)
			})
		},
	}

	cmd.Flags().BoolVar(&options.DryRun, "dry-run", false, "simulate without applying remote writes")
	cmd.Flags().StringVar(&options.DebugIssueKey, "debug-issue", "", "sync a single source issue by key")
	cmd.Flags().IntVar(&options.RecentHours, "recent", 0, "only consider source issues updated in the last N hours")
	cmd.Flags().StringVar(&options.MappingPath, "mapping", "", "path to the field mapping table")

	return cmd
}

func newWatchCommand(app AppContext, state *executionState) *cobra.Command {
	options := commands.WatchOptions{}

	cmd := &cobra.Command{
		Use:   string(contracts.CommandWatch),
		Short: "Run the sync repeatedly on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			state.commandName = string(contracts.CommandWatch)
			state.dryRun = options.Sync.DryRun
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), app, state, contracts.CommandWatch, func(ctx context.Context, logger *zap.Logger) (output.Report, error) {
				options.Sync.ConfigPath = state.global.Config
				options.Sync.Logger = logger
				options.Sync.Now = app.Now
				return commands.RunWatch(ctx, app.WorkDir, options)
			})
		},
	}

	cmd.Flags().StringVar(&options.Schedule, "schedule", "", "cron schedule for sync runs, e.g. \"*/5 * * * *\"")
	cmd.Flags().BoolVar(&options.Sync.DryRun, "dry-run", false, "simulate without applying remote writes")
	cmd.Flags().IntVar(&options.Sync.RecentHours, "recent", 0, "only consider source issues updated in the last N hours")
	cmd.Flags().StringVar(&options.Sync.MappingPath, "mapping", "", "path to the field mapping table")

	return cmd
}

func newCheckCommand(app AppContext, state *executionState) *cobra.Command {
	return &cobra.Command{
		Use:   string(contracts.CommandCheck),
		Short: "Probe authentication and project access on both sites",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			state.commandName = string(contracts.CommandCheck)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), app, state, contracts.CommandCheck, func(ctx context.Context, logger *zap.Logger) (output.Report, error) {
				return commands.RunCheck(ctx, app.WorkDir, commands.CheckOptions{ConfigPath: state.global.Config})
			})
		},
	}
}

func newValidateCommand(app AppContext, state *executionState) *cobra.Command {
	options := commands.ValidateOptions{}

	cmd := &cobra.Command{
		Use:   string(contracts.CommandValidate),
		Short: "Validate the bridge config and field mapping table",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			state.commandName = string(contracts.CommandValidate)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), app, state, contracts.CommandValidate, func(ctx context.Context, logger *zap.Logger) (output.Report, error) {
				options.ConfigPath = state.global.Config
				return commands.RunValidate(ctx, app.WorkDir, options)
			})
		},
	}

	cmd.Flags().BoolVar(&options.Live, "live", false, "cross-check mapped custom fields against the live field catalogs")
	cmd.Flags().StringVar(&options.MappingPath, "mapping", "", "path to the field mapping table")

	return cmd
}

func newFieldsCommand(app AppContext, state *executionState) *cobra.Command {
	options := commands.FieldsOptions{}

	cmd := &cobra.Command{
		Use:   string(contracts.CommandFields),
		Short: "List the field definitions of one site",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			state.commandName = string(contracts.CommandFields)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), app, state, contracts.CommandFields, func(ctx context.Context, logger *zap.Logger) (output.Report, error) {
				options.ConfigPath = state.global.Config
				return commands.RunFields(ctx, app.WorkDir, options)
			})
		},
	}

	cmd.Flags().StringVar(&options.Site, "site", "source", "site to query (source or target)")
	cmd.Flags().BoolVar(&options.All, "all", false, "include system fields")
	cmd.Flags().StringVar(&options.Search, "search", "", "filter fields by id or name substring")

	return cmd
}

func newInspectCommand(app AppContext, state *executionState) *cobra.Command {
	options := commands.InspectOptions{}

	cmd := &cobra.Command{
		Use:   string(contracts.CommandInspect) + " KEY",
		Short: "Show one issue the way the bridge sees it",
		Args:  cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			state.commandName = string(contracts.CommandInspect)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), app, state, contracts.CommandInspect, func(ctx context.Context, logger *zap.Logger) (output.Report, error) {
				options.Key = args[0]
				options.ConfigPath = state.global.Config
				return commands.RunInspect(ctx, app.WorkDir, options)
			})
		},
	}

	cmd.Flags().StringVar(&options.Site, "site", "source", "site to query (source or target)")
	cmd.Flags().BoolVar(&options.Attachments, "attachments", false, "list the issue's attachments")

	return cmd
}

// runCommand wraps one command invocation in the shared plumbing: the
// verbosity-driven logger, the single-instance lock for mutating
// commands, envelope rendering, and exit-code mapping.
func runCommand(ctx context.Context, app AppContext, state *executionState, name contracts.CommandName, run commandRun) error {
	logger := app.Logger
	if logger == nil {
		built, err := logging.New(state.global.Verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = built
		defer func() { _ = logger.Sync() }()
	}

	locker := lock.NewFileLock(resolveLockPath(app.WorkDir, state.global.Config), lock.Options{})

	start := app.Now()
	var report output.Report
	runner := middleware.WithCommandLock(name, locker, logger, func(ctx context.Context) error {
		produced, err := run(ctx, logger)
		report = produced
		return err
	})

	fatalErr := runner(ctx)
	if report.CommandName == "" {
		report.CommandName = string(name)
		report.DryRun = state.dryRun
	}

	if err := output.Write(state.outputMode(), app.Stdout, app.Stderr, report, app.Now().Sub(start), fatalErr); err != nil {
		return err
	}

	code := output.ResolveExitCode(report, fatalErr)
	if code == contracts.ExitCodeSuccess {
		return nil
	}
	return &codedExitError{Code: code}
}

// resolveLockPath derives the lock file location from the configured
// staging directory so that every command contends on the same file.
// The config is not resolved yet at this point; an unreadable file
// falls back to the default location.
func resolveLockPath(workDir string, configPath string) string {
	lockPath := lock.PathForStagingDir("")

	resolvedConfig := configPath
	if resolvedConfig == "" {
		resolvedConfig = contracts.ConfigFilePath
	}
	if !filepath.IsAbs(resolvedConfig) {
		resolvedConfig = filepath.Join(workDir, resolvedConfig)
	}
	if cfg, err := config.Read(resolvedConfig); err == nil && cfg.StagingDir != "" {
		lockPath = lock.PathForStagingDir(cfg.StagingDir)
	}

	if filepath.IsAbs(lockPath) {
		return lockPath
	}
	return filepath.Join(workDir, lockPath)
}

func normalizeAppContext(app AppContext) AppContext {
	if app.Now == nil {
		app.Now = time.Now
	}
	if app.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			app.WorkDir = wd
		} else {
			app.WorkDir = "."
		}
	}
	return app
}

type codedExitError struct {
	Code contracts.ExitCode
}

func (err codedExitError) Error() string {
	return fmt.Sprintf("exit with code %d", err.Code)
}
