package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/config"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/download"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/history"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/logging"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/resolver"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/update"
)

// buildInfo is set by Execute from the linker flags of the main package.
type buildInfo struct {
	version string
	commit  string
	date    string
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	build       buildInfo
	configPath  string
	installRoot string
	logLevel    string
	release     string
	noLaunch    bool
	plain       bool

	// isTerminal decides between the progress bar and log output.
	isTerminal func(w io.Writer) bool
}

// Execute runs the command tree until it returns or the process is interrupted.
func Execute(version, commit, date string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return newRootCmd(buildInfo{version: version, commit: commit, date: date}).ExecuteContext(ctx)
}

func newRootCmd(build buildInfo) *cobra.Command {
	opts := &rootOptions{build: build, isTerminal: isTerminal}

	rootCmd := &cobra.Command{
		Use:   "memate-launcher",
		Short: "Keep MeMate up to date and start it",
		Long: `memate-launcher checks the MeMate GitHub releases for a newer client build and
Java runtime, installs whatever is stale, and then starts the client.

Run without a subcommand to update and launch. Use 'check' to see what an
update would change without touching the installation.`,
		Version:      build.version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the launcher config")
	rootCmd.PersistentFlags().StringVar(&opts.installRoot, "install-root", "", "Installation directory (default <user config dir>/MeMate/Installation)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.release, "release", "", "Release tag to install instead of the latest")
	rootCmd.Flags().BoolVar(&opts.noLaunch, "no-launch", false, "Update only, do not start the client")
	rootCmd.Flags().BoolVar(&opts.plain, "plain", false, "Log progress instead of drawing a progress bar")

	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))
	rootCmd.AddCommand(newCompletionCmd())

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"trace", "debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

// loadConfig finds the config file and applies the command line overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Discover(o.configPath, o.installRoot)
	if err != nil {
		return nil, err
	}

	if o.installRoot != "" {
		cfg.InstallRoot = o.installRoot
	}
	if o.release != "" {
		cfg.Release = o.release
	}
	if o.logLevel != "" {
		if _, err := log.ParseLevel(o.logLevel); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
		cfg.Log.Level = o.logLevel
	}
	if o.noLaunch {
		cfg.Launch = false
	}

	if err := cfg.ResolveInstallRoot(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogging configures the logger for commands that only read state.
func (o *rootOptions) initLogging(cfg *config.Config, stderr io.Writer) (io.Closer, error) {
	return logging.Init(cfg.Log.Level, logging.Console, stderr)
}

func (o *rootOptions) userAgent() string {
	return "MeMate-Launcher/" + o.build.version
}

func (o *rootOptions) newResolver(cfg *config.Config) *resolver.GitHubResolver {
	r := resolver.NewGitHubResolver(cfg.Repository.Owner, cfg.Repository.Name, cfg.ClientBinary).
		WithRelease(cfg.Release).
		WithBaseURLs(cfg.APIBaseURL, cfg.DownloadBaseURL).
		WithTimeout(cfg.Network.MetadataTimeout.Std()).
		WithLauncherVersion(o.build.version)

	// Use GITHUB_TOKEN if available
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		r = r.WithToken(token)
	}
	return r
}

func (o *rootOptions) newDownloader(cfg *config.Config) *download.HTTPDownloader {
	return download.NewHTTPDownloader(
		download.WithInterval(cfg.ProgressInterval.Std()),
		download.WithConnectTimeout(cfg.Network.ConnectTimeout.Std()),
		download.WithUserAgent(o.userAgent()),
	)
}

func (o *rootOptions) newHistory(cfg *config.Config) *history.Manager {
	layout := update.NewLayout(cfg.InstallRoot, cfg.ClientBinary)
	return history.NewManager(layout.History(), o.build.version, cfg.HistoryKeep)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
