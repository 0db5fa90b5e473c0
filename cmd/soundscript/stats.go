package main

import (
	"errors"
	"fmt"
	"io"

	"soundscript/internal/catalog"
	"soundscript/internal/ranking"
	"soundscript/internal/stats"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// offlineStats opens the store without background flushing for one-shot
// commands.
func offlineStats(configPath string, fn func(cat *catalog.Catalog, store *stats.Store) error) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	cat, _, err := loadCatalog(cfg, logger)
	if err != nil {
		return err
	}

	db, store, err := openStats(cfg, cat, logger, stats.Options{Interval: -1})
	if err != nil {
		return err
	}
	defer db.Close()

	runErr := fn(cat, store)
	if err := store.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func rankCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:       "rank [queue]",
		Short:     "Print the ranked queues",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: ranking.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := ranking.Names()
			if len(args) == 1 {
				names = args
			}
			return offlineStats(*configPath, func(cat *catalog.Catalog, store *stats.Store) error {
				snapshot := store.Snapshot()
				rankings := ranking.Compute(snapshot, limit)
				for _, name := range names {
					queue, _ := rankings.Queue(name)
					renderRanking(cmd.OutOrStdout(), name, queue, cat, snapshot)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", ranking.DefaultLimit, "maximum entries per queue")
	return cmd
}

func renderRanking(out io.Writer, name string, queue []int, cat *catalog.Catalog, snapshot []stats.Stat) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(name)
	t.AppendHeader(table.Row{"#", "Title", "Artist", "Album", "Plays", "Likes", "Dislikes"})

	for pos, idx := range queue {
		s := snapshot[idx]
		t.AppendRow(table.Row{pos + 1, cat.Title(idx), cat.Artist(idx), cat.AlbumKey(idx), s.Play, s.Like, s.Dislike})
	}
	t.Render()
	fmt.Fprintln(out)
}

func statsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Inspect or reset listening stats",
	}
	cmd.AddCommand(statsShowCmd(configPath), statsResetCmd(configPath))
	return cmd
}

func statsShowCmd(configPath *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the per-song counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return offlineStats(*configPath, func(cat *catalog.Catalog, store *stats.Store) error {
				snapshot := store.Snapshot()

				t := table.NewWriter()
				t.SetOutputMirror(cmd.OutOrStdout())
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Index", "Title", "Album", "Plays", "Likes", "Dislikes"})
				t.SetColumnConfigs([]table.ColumnConfig{
					{Number: 4, Align: text.AlignRight},
					{Number: 5, Align: text.AlignRight},
					{Number: 6, Align: text.AlignRight},
				})

				for idx, s := range snapshot {
					if !all && s == (stats.Stat{}) {
						continue
					}
					t.AppendRow(table.Row{idx, cat.Title(idx), cat.AlbumKey(idx), s.Play, s.Like, s.Dislike})
				}

				plays := lo.SumBy(snapshot, func(s stats.Stat) uint64 { return s.Play })
				t.AppendFooter(table.Row{"", fmt.Sprintf("%d songs", len(snapshot)), "", plays, "", ""})
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include songs without any counts")
	return cmd
}

func statsResetCmd(configPath *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Zero every counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset stats without --yes")
			}
			return offlineStats(*configPath, func(cat *catalog.Catalog, store *stats.Store) error {
				store.Reset()
				fmt.Fprintf(cmd.OutOrStdout(), "Reset stats for %d songs\n", cat.Size())
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}
