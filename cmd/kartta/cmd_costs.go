package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/karttaio/kartta/types"
)

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Break down the account's estimated monthly spend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.svc.CostAnalysis(ctx, accountRequest())
		if err != nil {
			return err
		}

		fmt.Printf("Account: %s\n", report.AccountRef)
		fmt.Printf("Total:   $%.2f/month\n\n", report.TotalMonthlyCost)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "REGION\tMONTHLY COST")
		for _, region := range sortedKeys(report.ByRegion) {
			fmt.Fprintf(w, "%s\t$%.2f\n", region, report.ByRegion[region])
		}
		w.Flush()

		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BUCKET\tRESOURCES")
		buckets := make([]string, 0, len(report.Distribution))
		for b := range report.Distribution {
			buckets = append(buckets, string(b))
		}
		sort.Strings(buckets)
		for _, b := range buckets {
			fmt.Fprintf(w, "%s\t%d\n", b, report.Distribution[types.CostBucket(b)])
		}
		w.Flush()

		if len(report.TopResources) > 0 {
			fmt.Println()
			w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOP RESOURCES\tREGION\tMONTHLY COST")
			for _, rec := range report.TopResources {
				name := rec.ResourceName
				if name == "" {
					name = rec.ResourceID
				}
				fmt.Fprintf(w, "%s\t%s\t$%.2f\n", name, rec.Region, rec.EstimatedMonthlyCost)
			}
			w.Flush()
		}
		return nil
	},
}

func init() {
	addAccountFlags(costsCmd)
	rootCmd.AddCommand(costsCmd)
}
