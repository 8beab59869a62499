package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the account's snapshot as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var w io.Writer = os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOut, err)
			}
			defer f.Close()
			w = f
		}

		req := accountRequest()
		switch exportFormat {
		case "json":
			return a.svc.ExportJSON(ctx, req, w)
		case "csv":
			return a.svc.ExportCSV(ctx, req, w)
		default:
			return fmt.Errorf("unknown export format %q (want json or csv)", exportFormat)
		}
	},
}

func init() {
	addAccountFlags(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format: json or csv")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
