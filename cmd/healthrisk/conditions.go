package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"healthrisk/internal/client"
	"healthrisk/internal/common"
	"healthrisk/internal/condition"
	"healthrisk/internal/risk"

	"github.com/spf13/cobra"
)

var conditionsCmd = &cobra.Command{
	Use:   "conditions",
	Short: "List the conditions, their features and risk weights",
	Long: `List the conditions, their features and risk weights.

Without --url the built-in catalog is printed. With --url the running
service is asked which conditions it actually loaded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if u, _ := cmd.Flags().GetString("url"); u != "" {
			return runRemoteConditions(cmd, u)
		}
		return runLocalConditions(cmd)
	},
}

func init() {
	conditionsCmd.Flags().String("url", "", "Query a running service instead of the built-in catalog")
	conditionsCmd.Flags().Duration("timeout", common.DefaultClientTimeout, "Request timeout")
}

func runLocalConditions(cmd *cobra.Command) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONDITION\tARTIFACT\tFEATURES\tWEIGHTS")
	for _, spec := range condition.All() {
		weights := make([]string, 0, len(spec.Weights))
		for _, wt := range spec.Weights {
			weights = append(weights, fmt.Sprintf("%s=%g(%s)", wt.Feature, wt.Points, wt.Kind))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", spec.Name, spec.Artifact,
			strings.Join(spec.Required, ","), strings.Join(weights, " "))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tHIGH\tMODERATE")
	thresholds := risk.Thresholds()
	for _, name := range risk.ThresholdFeatures() {
		t := thresholds[name]
		fmt.Fprintf(w, "%s\t%g\t%g\n", name, t.High, t.Moderate)
	}
	return w.Flush()
}

func runRemoteConditions(cmd *cobra.Command, url string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := contextWithTimeout(cmd, timeout)
	defer cancel()

	d, err := client.New(url, timeout).Discover(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, d)
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), effectiveTimeout(d))
}
