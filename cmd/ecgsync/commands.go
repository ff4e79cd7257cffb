package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bft-labs/ecgsync/pkg/ecg"
	"github.com/bft-labs/ecgsync/pkg/ecgsync"
)

func (a *app) listCmd() *cobra.Command {
	var annotatedOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the recordings known to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd.Context(), func(_ context.Context, c *ecgsync.Client) error {
				records := c.Store().Records()
				if annotatedOnly {
					filtered := records[:0]
					for _, r := range records {
						if r.IsAnnotated() {
							filtered = append(filtered, r)
						}
					}
					records = filtered
				}
				return printRecords(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().BoolVar(&annotatedOnly, "annotated", false, "only list annotated recordings")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Load a recording and print its details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return a.session(cmd.Context(), func(ctx context.Context, c *ecgsync.Client) error {
				store := c.Store()
				if err := store.Fetch(id); err != nil {
					return err
				}
				loaded := func() bool {
					r, ok := store.Peek(id)
					return !ok || r.Loaded()
				}
				if err := store.WaitUntil(ctx, loaded); err != nil {
					return fmt.Errorf("waiting for %s: %w", id, err)
				}
				r, ok := store.Peek(id)
				if !ok {
					return fmt.Errorf("%s: %w", id, ecg.ErrRecordNotFound)
				}
				return printRecord(cmd.OutOrStdout(), r)
			})
		},
	}
}

func (a *app) annotateCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "annotate ID [KEY...]",
		Short: "Replace the annotation of a recording",
		Long: "Replace the annotation of a recording with the given taxonomy keys.\n" +
			"Keys have the form group/annotation, or group for groups without children.\n" +
			"Passing no keys clears the annotation.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, keys := args[0], args[1:]
			return a.session(cmd.Context(), func(ctx context.Context, c *ecgsync.Client) error {
				store := c.Store()
				if !force && len(keys) > 0 {
					if err := store.WaitUntil(ctx, store.TaxonomyReady); err != nil {
						return fmt.Errorf("waiting for taxonomy: %w", err)
					}
					for _, k := range keys {
						if !store.IsKnownAnnotation(k) {
							return fmt.Errorf("unknown annotation %q (use --force to send anyway)", k)
						}
					}
				}
				if err := store.SetAnnotation(id, keys); err != nil {
					return err
				}
				a.log.Info().Str("id", id).Strs("annotation", keys).Msg("annotation sent")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "skip checking keys against the taxonomy")
	return cmd
}

func (a *app) taxonomyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the annotation taxonomy and the common annotations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd.Context(), func(ctx context.Context, c *ecgsync.Client) error {
				store := c.Store()
				if err := store.WaitUntil(ctx, store.TaxonomyReady); err != nil {
					return fmt.Errorf("waiting for taxonomy: %w", err)
				}
				return printTaxonomy(cmd.OutOrStdout(), store.Taxonomy(), store.CommonAnnotations())
			})
		},
	}
}

func (a *app) archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Archive the annotated recordings on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd.Context(), func(ctx context.Context, c *ecgsync.Client) error {
				store := c.Store()
				before := store.Len()
				if err := store.Archive(); err != nil {
					return err
				}
				done := func() bool { return !store.Archiving() }
				if err := store.WaitUntil(ctx, done); err != nil {
					return fmt.Errorf("waiting for archive: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "archived %d of %d recordings\n", before-store.Len(), before)
				return nil
			})
		},
	}
}

func printRecords(w io.Writer, records []ecg.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tSTATUS\tANNOTATION")
	for _, r := range records {
		annotation := "-"
		if r.IsAnnotated() {
			annotation = strings.Join(r.Annotation, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Timestamp, r.Status(), annotation)
	}
	return tw.Flush()
}

func printRecord(w io.Writer, r ecg.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", r.ID)
	fmt.Fprintf(tw, "timestamp:\t%s\n", r.Timestamp)
	if r.SHA != "" {
		fmt.Fprintf(tw, "sha:\t%s\n", r.SHA)
	}
	fmt.Fprintf(tw, "frequency:\t%s\n", humanize.SIWithDigits(r.Frequency, 2, "Hz"))
	fmt.Fprintf(tw, "annotation:\t%s\n", strings.Join(r.Annotation, ", "))
	for i, samples := range r.Signal {
		fmt.Fprintf(tw, "channel %d:\t%s\t%s samples", i, channelLabel(r, i), humanize.Comma(int64(len(samples))))
		if r.Frequency > 0 {
			fmt.Fprintf(tw, " (%.1fs)", float64(len(samples))/r.Frequency)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func channelLabel(r ecg.Record, i int) string {
	name, unit := "?", ""
	if i < len(r.Signame) {
		name = r.Signame[i]
	}
	if i < len(r.Units) {
		unit = " [" + r.Units[i] + "]"
	}
	return name + unit
}

func printTaxonomy(w io.Writer, groups []ecg.AnnotationGroup, common []string) error {
	for _, g := range groups {
		if g.IsLeaf() {
			fmt.Fprintln(w, g.ID)
			continue
		}
		fmt.Fprintf(w, "%s/\n", g.ID)
		for _, ann := range g.Annotations {
			fmt.Fprintf(w, "  %s\n", ann)
		}
	}
	if len(common) > 0 {
		fmt.Fprintf(w, "\ncommon: %s\n", strings.Join(common, ", "))
	}
	return nil
}
