// Package importcmd ingests a JSON or CSV export from disk
package importcmd

import (
	"fmt"

	"fjacquet/sms-ledger/cmd/fetch"
	"fjacquet/sms-ledger/cmd/root"

	"github.com/spf13/cobra"
)

// Flags of the import command
var (
	Input  string
	Format string
)

// Cmd represents the import command
var Cmd = &cobra.Command{
	Use:   "import",
	Short: "Import SMS messages from an export file",
	Long: `Import SMS messages from a JSON export (same shapes as the gateway inbox) or a
CSV export with guid, number, message, date, hour, time_received, timestamp_unix and
device_id columns. When --input is a directory every .json and .csv file below it
is imported. Messages already stored are skipped.`,
	RunE: importFunc,
}

func init() {
	Cmd.Flags().StringVarP(&Input, "input", "i", "", "Export file (.json or .csv) or directory of exports")
	Cmd.Flags().StringVarP(&Format, "format", "f", root.FormatYAML, "Output format: yaml or json")
	_ = Cmd.MarkFlagRequired("input")
}

func importFunc(cmd *cobra.Command, args []string) error {
	if Input == "" {
		return fmt.Errorf("--input is required")
	}

	ctx := cmd.Context()
	c, err := root.NewContainer(ctx)
	if err != nil {
		return err
	}
	defer root.Close(c)

	result, importErr := c.GetImporter().Import(ctx, Input)
	if err := root.Print(cmd.OutOrStdout(), fetch.NewReport(result), Format); err != nil {
		return err
	}
	return importErr
}
