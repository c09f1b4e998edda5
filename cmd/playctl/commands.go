package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCollectionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the configured collections and their fixture files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().Collections(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLLECTION\tSOURCE\t")
			for _, d := range resp.Collections {
				name := string(d.Name)
				if d.Name == resp.Default {
					name += " (default)"
				}
				fmt.Fprintf(tw, "%s\t%s\t\n", name, d.SourceFile)
			}
			return tw.Flush()
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var failFast bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Load every dataset into the search engine",
		Long: `Triggers SyncAll on the server and prints the per-dataset report.
A sync already in flight is joined rather than restarted. The command exits
non-zero when any dataset failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ff *bool
			if cmd.Flags().Changed("fail-fast") {
				ff = &failFast
			}
			report, err := opts.client().Sync(cmd.Context(), ff)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLLECTION\tSTAGE\tDOCS\tCREATED\tTIME\tERROR\t")
			for _, r := range report.Results {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%dms\t%s\t\n",
					r.Collection, r.Stage, r.Documents, r.Created, r.DurationMs, r.Error)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nrun %s: %s (%d ok, %d failed, %d skipped) in %dms\n",
				report.ID, report.Status, report.Succeeded, report.Failed, report.Skipped, report.DurationMs)
			if report.Failed > 0 {
				return fmt.Errorf("sync %s", report.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed dataset (defaults to the server setting)")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		limit   int
		rawJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <collection> [query...]",
		Short: "Run a query against one collection",
		Long: `Runs a query in the given collection and prints each hit's id and
JSON body. Omitting the query returns the collection's default result set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}
			text := strings.Join(args[1:], " ")
			resp, err := opts.client().Search(cmd.Context(), args[0], text, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rawJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			if resp.Count == 0 {
				fmt.Fprintf(out, "no results for %q in %s\n", resp.Text, resp.Target)
				return nil
			}
			for _, hit := range resp.Results {
				doc, err := json.Marshal(hit.Document)
				if err != nil {
					return fmt.Errorf("encoding hit %s: %w", hit.ID, err)
				}
				fmt.Fprintf(out, "%s\t%s\n", hit.ID, doc)
			}
			fmt.Fprintf(out, "%d result(s)\n", resp.Count)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of hits (server default when 0)")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "print the raw session state as JSON")
	return cmd
}
