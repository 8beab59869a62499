package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/karttaio/kartta/types"
)

var (
	discoverForce    bool
	discoverJSON     bool
	discoverServices []string
	discoverSkipFree bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run discovery against one account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		req := accountRequest()
		req.ServiceFilter = discoverServices
		req.SkipEmptyCost = discoverSkipFree

		snap, err := a.svc.Snapshot(ctx, req, discoverForce)
		if err != nil {
			return err
		}

		if discoverJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		printSnapshot(snap)
		return nil
	},
}

func init() {
	addAccountFlags(discoverCmd)
	discoverCmd.Flags().BoolVar(&discoverForce, "force", false, "bypass the cache and run a fresh scan")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "emit the full snapshot as JSON")
	discoverCmd.Flags().StringSliceVar(&discoverServices, "service", nil, "only service ids with these prefixes")
	discoverCmd.Flags().BoolVar(&discoverSkipFree, "skip-free", false, "drop zero-cost records from the snapshot")
	rootCmd.AddCommand(discoverCmd)
}

func printSnapshot(snap *types.Snapshot) {
	fmt.Printf("Account:  %s\n", snap.AccountRef)
	fmt.Printf("Regions:  %d scanned\n", len(snap.RegionsScanned))
	fmt.Printf("Records:  %d across %d services\n", snap.TotalRecords, snap.Summary.DistinctServices)
	fmt.Printf("Cost:     $%.2f/month\n", snap.TotalMonthlyCost)
	fmt.Printf("Duration: %s\n", snap.Duration().Round(timeResolution))
	if snap.TruncatedByDeadline {
		fmt.Println("Warning: run hit the deadline, results are incomplete")
	}
	for _, issue := range snap.Summary.PermissionsIssues {
		fmt.Printf("Warning: %s\n", issue)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nSERVICE\tCOUNT")
	for _, id := range sortedKeys(snap.Summary.CountsByService) {
		fmt.Fprintf(w, "%s\t%d\n", id, snap.Summary.CountsByService[id])
	}
	w.Flush()
}
