package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/anime-shed/image-inspector-go/internal/analyzer"
	"github.com/anime-shed/image-inspector-go/internal/service"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, export and prune archived inspections",
	}
	cmd.AddCommand(
		newHistoryListCommand(a),
		newHistoryExportCommand(a),
		newHistoryDeleteCommand(a),
		newHistoryClearCommand(a),
	)
	return cmd
}

func newHistoryListCommand(a *app) *cobra.Command {
	var (
		query models.HistoryQuery
		sort  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived inspections, newest first by default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query.Sort = models.HistorySort(sort)
			return a.withService(func(svc service.InspectionService) error {
				items, err := svc.ListHistory(cmd.Context(), query)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No history")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTIMESTAMP\tNAME\tTYPE\tSIZE\tCAMERA\tTAKEN")
				for _, rec := range items {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
						rec.ID,
						rec.Timestamp,
						rec.Metadata.Value(analyzer.KeyFileName),
						rec.Metadata.Value(analyzer.KeyFileType),
						rec.Metadata.Value(analyzer.KeyFileSize),
						orDash(analyzer.CameraOf(rec.Metadata)),
						orDash(analyzer.TakenOf(rec.Metadata)),
					)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&query.Search, "search", "", "case-insensitive match on file name or type")
	cmd.Flags().StringVar(&query.Type, "type", "", `exact file type, or "all"`)
	cmd.Flags().StringVar(&sort, "sort", string(models.SortNewest), "newest, oldest, name or size")
	return cmd
}

func newHistoryExportCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the history as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(func(svc service.InspectionService) error {
				data, err := svc.ExportHistory(cmd.Context())
				if err != nil {
					return err
				}
				if output == "" {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "History exported to %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newHistoryDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one archived inspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			return a.withService(func(svc service.InspectionService) error {
				if err := svc.DeleteHistory(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
				return nil
			})
		},
	}
}

func newHistoryClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every archived inspection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(func(svc service.InspectionService) error {
				if err := svc.ClearHistory(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			})
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
