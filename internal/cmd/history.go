package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/history"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/interactive"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/output"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect installed states replaced by updates",
		Long: `History keeps a snapshot of every installed state an update superseded.

Snapshots are stored in the history directory of the installation root and
record the previous and the new descriptor.`,
	}

	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")

	cmd.AddCommand(newHistoryListCmd(opts, &outputFormat))
	cmd.AddCommand(newHistoryShowCmd(opts, &outputFormat))
	cmd.AddCommand(newHistoryPruneCmd(opts, &outputFormat))

	return cmd
}

func newHistoryListCmd(opts *rootOptions, outputFormat *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(*outputFormat)
			if err != nil {
				return err
			}
			return runHistoryList(cmd.OutOrStdout(), opts, format)
		},
	}
}

func newHistoryShowCmd(opts *rootOptions, outputFormat *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one history entry",
		Long: `Show prints the previous and new descriptor of an entry.

Use 'latest' as the ID for the most recent entry. A unique ID prefix is accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(*outputFormat)
			if err != nil {
				return err
			}
			return runHistoryShow(cmd.OutOrStdout(), opts, format, args[0])
		},
	}
}

func newHistoryPruneCmd(opts *rootOptions, outputFormat *string) *cobra.Command {
	var keep int
	var yes bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old history entries",
		Long: fmt.Sprintf(`Prune deletes old entries, keeping only the most recent N.

By default, keeps the %d most recent entries. On a terminal every entry is
confirmed first unless --yes is given.`, history.DefaultKeepCount),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(*outputFormat)
			if err != nil {
				return err
			}
			var prompter *interactive.Prompter
			if !yes && interactive.IsTerminal(cmd.InOrStdin()) {
				prompter = interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return runHistoryPrune(cmd.OutOrStdout(), opts, format, keep, prompter)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", history.DefaultKeepCount, "Number of entries to keep")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompts")

	return cmd
}

func (o *rootOptions) historyManager() (*history.Manager, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return o.newHistory(cfg), nil
}

func runHistoryList(stdout io.Writer, opts *rootOptions, format output.Format) error {
	manager, err := opts.historyManager()
	if err != nil {
		return err
	}

	infos, err := manager.List()
	if err != nil {
		return err
	}

	if format != output.FormatText {
		return output.NewWriter(stdout, format).Write(infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(stdout, "No history entries found.")
		fmt.Fprintf(stdout, "History directory: %s\n", manager.Dir())
		return nil
	}

	fmt.Fprintf(stdout, "History stored in %s:\n\n", manager.Dir())
	tbl := output.NewTable(stdout, "ID", "Created", "From", "To", "Size")
	for _, info := range infos {
		tbl.Row(
			info.ID,
			info.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			orDash(info.From),
			orDash(info.To),
			humanize.Bytes(uint64(info.Size)),
		)
	}
	return tbl.Flush()
}

func runHistoryShow(stdout io.Writer, opts *rootOptions, format output.Format, id string) error {
	manager, err := opts.historyManager()
	if err != nil {
		return err
	}

	entry, err := manager.Get(id)
	if err != nil {
		return err
	}

	if format != output.FormatText {
		return output.NewWriter(stdout, format).Write(entry)
	}

	fmt.Fprintf(stdout, "Entry:    %s\n", entry.ID)
	fmt.Fprintf(stdout, "Created:  %s (%s)\n", entry.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(entry.CreatedAt))
	if entry.LauncherVersion != "" {
		fmt.Fprintf(stdout, "Launcher: %s\n", entry.LauncherVersion)
	}
	if entry.Reason != "" {
		fmt.Fprintf(stdout, "Reason:   %s\n", entry.Reason)
	}
	fmt.Fprintln(stdout)

	was, now := entry.Previous.Fields(), entry.Next.Fields()
	tbl := output.NewTable(stdout, "FIELD", "PREVIOUS", "NEXT")
	for _, key := range descriptor.Keys {
		tbl.Row(key, orDash(was[key]), orDash(now[key]))
	}
	return tbl.Flush()
}

// runHistoryPrune deletes old entries. A nil prompter deletes without asking.
func runHistoryPrune(stdout io.Writer, opts *rootOptions, format output.Format, keep int, prompter *interactive.Prompter) error {
	manager, err := opts.historyManager()
	if err != nil {
		return err
	}

	candidates, err := manager.PruneCandidates(keep)
	if err != nil {
		return err
	}
	if prompter != nil {
		selected, proceed := prompter.SelectForDeletion(candidates)
		if !proceed {
			return fmt.Errorf("prune cancelled")
		}
		candidates = selected
	}

	result, err := manager.DeleteAll(candidates)
	if err != nil {
		return err
	}

	if format != output.FormatText {
		return output.NewWriter(stdout, format).Write(result)
	}

	if len(result.Deleted) == 0 {
		fmt.Fprintf(stdout, "Nothing to prune (%d entries kept).\n", result.Kept)
		return nil
	}
	for _, info := range result.Deleted {
		fmt.Fprintf(stdout, "Deleted %s\n", info.ID)
	}
	fmt.Fprintf(stdout, "\nPruned %d entries, kept %d.\n", len(result.Deleted), result.Kept)
	return nil
}
