package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the inventory roll-up for one account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.svc.Summary(ctx, accountRequest())
		if err != nil {
			return err
		}

		fmt.Printf("Account: %s (as of %s)\n", view.AccountRef, view.GeneratedAt.Format("2006-01-02 15:04 MST"))
		fmt.Printf("Total:   %d resources, $%.2f/month\n\n", view.TotalRecords, view.TotalMonthlyCost)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tCOUNT\tMONTHLY COST")
		categories := make([]string, 0, len(view.Summary.CountsByCategory))
		for cat := range view.Summary.CountsByCategory {
			categories = append(categories, string(cat))
		}
		sort.Strings(categories)
		for _, cat := range categories {
			fmt.Fprintf(w, "%s\t%d\t$%.2f\n",
				cat,
				view.Summary.CountsByCategory[categoryOf(cat)],
				view.Summary.CostByCategory[categoryOf(cat)])
		}
		w.Flush()

		if len(view.Summary.PermissionsIssues) > 0 {
			fmt.Println()
			for _, issue := range view.Summary.PermissionsIssues {
				fmt.Printf("Warning: %s\n", issue)
			}
		}
		return nil
	},
}

func init() {
	addAccountFlags(summaryCmd)
	rootCmd.AddCommand(summaryCmd)
}
