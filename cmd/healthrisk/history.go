package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"healthrisk/internal/ml"
	"healthrisk/internal/storage"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [condition]",
	Short: "Show recorded model loads from the catalog",
	Long: `Show recorded model loads from the catalog.

Without a condition the newest record of every condition is shown. The
catalog is read from the configured data path, or --data when given.
BoltDB holds an exclusive lock, so this fails while the server is running
against the same data path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataPath, _ := cmd.Flags().GetString("data")
		if dataPath == "" {
			c, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			dataPath = c.DataPath
		}
		if dataPath == "" {
			return fmt.Errorf("no data path configured; set DATA_PATH or pass --data")
		}

		catalog, err := storage.New(dataPath)
		if err != nil {
			return err
		}
		defer catalog.Close()

		var records []ml.ArtifactInfo
		if len(args) == 1 {
			limit, _ := cmd.Flags().GetInt("limit")
			records, err = catalog.History(args[0], limit)
		} else {
			records, err = latestRecords(catalog)
		}
		if err != nil {
			return err
		}
		return printHistory(cmd, records)
	},
}

func init() {
	historyCmd.Flags().String("data", "", "Data directory holding the catalog (overrides DATA_PATH)")
	historyCmd.Flags().Int("limit", 20, "Records to show for a single condition")
}

func latestRecords(c *storage.Catalog) ([]ml.ArtifactInfo, error) {
	latest, err := c.Latest()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(latest))
	for name := range latest {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ml.ArtifactInfo, 0, len(names))
	for _, name := range names {
		out = append(out, latest[name])
	}
	return out, nil
}

func printHistory(cmd *cobra.Command, records []ml.ArtifactInfo) error {
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no model loads recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOADED\tCONDITION\tSTATUS\tFORMAT\tVERSION\tSHA256\tDETAIL")
	for _, r := range records {
		sum := r.SHA256
		if len(sum) > 12 {
			sum = sum[:12]
		}
		detail := r.Path
		if r.Error != "" {
			detail = r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.LoadedAt.Local().Format(time.DateTime), r.Condition, r.Status,
			dashIfEmpty(r.Format), dashIfEmpty(r.Version), dashIfEmpty(sum), detail)
	}
	return w.Flush()
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
