package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	invalidateAccount string
	invalidateAll     bool
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop cached snapshots so the next query runs fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		if invalidateAccount == "" && !invalidateAll {
			return errors.New("pass --account or --all")
		}

		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if invalidateAll {
			if err := a.svc.InvalidateAll(ctx); err != nil {
				return err
			}
			fmt.Println("Dropped all cached snapshots")
			return nil
		}
		if err := a.svc.Invalidate(ctx, invalidateAccount); err != nil {
			return err
		}
		fmt.Printf("Dropped cached snapshot for %s\n", invalidateAccount)
		return nil
	},
}

func init() {
	invalidateCmd.Flags().StringVar(&invalidateAccount, "account", "", "account reference to invalidate")
	invalidateCmd.Flags().BoolVar(&invalidateAll, "all", false, "invalidate every account")
	rootCmd.AddCommand(invalidateCmd)
}
