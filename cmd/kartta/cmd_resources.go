package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/karttaio/kartta/types"
)

var (
	resourcesCategory string
	resourcesPaidOnly bool
)

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List discovered resources, optionally one family at a time",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		req := accountRequest()
		category := types.Category(resourcesCategory)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tRESOURCE\tREGION\tMONTHLY COST")

		if resourcesPaidOnly {
			paid, err := a.svc.PaidResources(ctx, req, category)
			if err != nil {
				return err
			}
			for _, rec := range paid {
				printRecord(w, rec)
			}
			return w.Flush()
		}

		grouped, err := a.svc.ResourcesByCategory(ctx, req, category)
		if err != nil {
			return err
		}
		families := make([]string, 0, len(grouped))
		for cat := range grouped {
			families = append(families, string(cat))
		}
		sort.Strings(families)
		for _, cat := range families {
			for _, rec := range grouped[types.Category(cat)] {
				printRecord(w, rec)
			}
		}
		return w.Flush()
	},
}

func printRecord(w *tabwriter.Writer, rec types.ResourceRecord) {
	name := rec.ResourceName
	if name == "" {
		name = rec.ResourceID
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t$%.2f\n", rec.ServiceID, name, rec.Region, rec.EstimatedMonthlyCost)
}

func init() {
	addAccountFlags(resourcesCmd)
	resourcesCmd.Flags().StringVar(&resourcesCategory, "category", "", "restrict to one service family")
	resourcesCmd.Flags().BoolVar(&resourcesPaidOnly, "paid", false, "only resources with a nonzero estimate")
	rootCmd.AddCommand(resourcesCmd)
}
