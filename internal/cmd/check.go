package cmd

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/output"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/update"
)

// checkReport is what an update would do right now.
type checkReport struct {
	Tag       string                 `json:"tag" yaml:"tag"`
	Direction update.Direction       `json:"direction" yaml:"direction"`
	Installed *descriptor.Descriptor `json:"installed" yaml:"installed"`
	Latest    descriptor.Descriptor  `json:"latest" yaml:"latest"`
	Plan      update.Plan            `json:"plan" yaml:"plan"`
}

func (r checkReport) WriteText(w io.Writer) error {
	installed := "not installed"
	if r.Installed != nil {
		installed = r.Installed.BuildVersion
	}
	fmt.Fprintf(w, "Installed: %s\n", installed)
	fmt.Fprintf(w, "Latest:    %s (release %s, %s)\n", r.Latest.BuildVersion, r.Tag, r.Direction)
	fmt.Fprintln(w)

	if r.Plan.UpToDate() {
		_, err := fmt.Fprintln(w, "Everything is up to date.")
		return err
	}

	fmt.Fprintf(w, "Client:  %s\n", staleness(r.Plan.ClientNeedsUpdate))
	fmt.Fprintf(w, "Runtime: %s\n", staleness(r.Plan.RuntimeNeedsUpdate))
	if len(r.Plan.Changes) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tbl := output.NewTable(w, "FIELD", "INSTALLED", "LATEST")
	for _, c := range r.Plan.Changes {
		tbl.Row(c.Field, orDash(c.Installed), orDash(c.Latest))
	}
	return tbl.Flush()
}

func staleness(stale bool) string {
	if stale {
		return "update available"
	}
	return "up to date"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show what an update would change",
		Long: `Check resolves the latest release and compares its descriptor with the
installed state. Nothing is downloaded or written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, format)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runCheck(ctx context.Context, stdout, stderr io.Writer, opts *rootOptions, format output.Format) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	closer, err := opts.initLogging(cfg, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	rel, err := opts.newResolver(cfg).ResolveLatest(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	store := update.NewStore(update.NewLayout(cfg.InstallRoot, cfg.ClientBinary))
	installed, err := store.Load()
	if err != nil {
		log.Warnf("ignoring unreadable installed state: %v", err)
		installed = nil
	}

	report := checkReport{
		Tag:       rel.Tag,
		Installed: installed,
		Latest:    rel.Descriptor,
		Plan:      update.Decide(installed, rel.Descriptor),
	}
	var installedVersion string
	if installed != nil {
		installedVersion = installed.BuildVersion
	}
	report.Direction = update.Describe(installedVersion, rel.Descriptor.BuildVersion)

	return output.NewWriter(stdout, format).Write(report)
}
