package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/output"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/update"
)

type statusReport struct {
	InstallRoot    string                 `json:"install_root" yaml:"install_root"`
	Installed      bool                   `json:"installed" yaml:"installed"`
	Descriptor     *descriptor.Descriptor `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	ClientPath     string                 `json:"client_path" yaml:"client_path"`
	ClientPresent  bool                   `json:"client_present" yaml:"client_present"`
	RuntimePath    string                 `json:"runtime_path,omitempty" yaml:"runtime_path,omitempty"`
	RuntimePresent bool                   `json:"runtime_present" yaml:"runtime_present"`
}

func (r statusReport) WriteText(w io.Writer) error {
	if !r.Installed {
		_, err := fmt.Fprintf(w, "MeMate is not installed in %s\n", r.InstallRoot)
		return err
	}

	tbl := output.NewTable(w)
	tbl.Row("Install root:", r.InstallRoot)
	tbl.Row("Build:", r.Descriptor.BuildVersion)
	tbl.Row("Client:", presence(r.ClientPath, r.ClientPresent))
	tbl.Row("Runtime:", presence(r.RuntimePath, r.RuntimePresent))
	tbl.Row("Runtime URL:", r.Descriptor.RuntimeURL)
	tbl.Row("Runtime signature:", r.Descriptor.RuntimeSignature)
	return tbl.Flush()
}

func presence(path string, ok bool) string {
	if ok {
		return path
	}
	return path + " (missing)"
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the installed state",
		Long:  `Status prints the installed build and runtime and whether their files are present.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			return runStatus(cmd.OutOrStdout(), opts, format)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")

	return cmd
}

func runStatus(stdout io.Writer, opts *rootOptions, format output.Format) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	layout := update.NewLayout(cfg.InstallRoot, cfg.ClientBinary)
	installed, err := update.NewStore(layout).Load()
	if err != nil {
		return err
	}

	report := statusReport{
		InstallRoot:   layout.Root,
		Installed:     installed != nil,
		Descriptor:    installed,
		ClientPath:    layout.Client(),
		ClientPresent: exists(layout.Client(), false),
	}
	if installed != nil {
		report.RuntimePath = layout.RuntimeDir(installed.RuntimeFolderName)
		report.RuntimePresent = exists(report.RuntimePath, true)
	}

	return output.NewWriter(stdout, format).Write(report)
}

func exists(path string, dir bool) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir() == dir
}
