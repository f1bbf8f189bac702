// Package parse runs the MPESA extractor on a single message body
package parse

import (
	"fmt"

	"fjacquet/sms-ledger/cmd/root"
	"fjacquet/sms-ledger/internal/container"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"

	"github.com/spf13/cobra"
)

// Flags of the parse command
var (
	Message string
	Sender  string
	Format  string
)

// Result is the printed draft plus the display fields a stored
// transaction would carry. The extra fields are empty when nothing matched.
type Result struct {
	models.Draft    `yaml:",inline"`
	FormattedAmount string `json:"formatted_amount,omitempty" yaml:"formatted_amount,omitempty"`
	TxDate          string `json:"tx_date,omitempty" yaml:"tx_date,omitempty"`
	TxTime          string `json:"tx_time,omitempty" yaml:"tx_time,omitempty"`
}

// Cmd represents the parse command
var Cmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse one SMS body",
	Long:  `Run the transaction extractor on one SMS body and print the resulting draft.`,
	RunE:  parseFunc,
}

func init() {
	Cmd.Flags().StringVarP(&Message, "message", "m", "", "SMS body to parse")
	Cmd.Flags().StringVarP(&Sender, "sender", "s", "", "Sender address, used as a candidacy hint")
	Cmd.Flags().StringVarP(&Format, "format", "f", root.FormatYAML, "Output format: yaml or json")
	_ = Cmd.MarkFlagRequired("message")
}

func parseFunc(cmd *cobra.Command, args []string) error {
	if root.AppConfig == nil {
		return fmt.Errorf("configuration not loaded")
	}
	p := container.NewParser(root.AppConfig, root.Log)
	return root.Print(cmd.OutOrStdout(), preview(p.Parse(Message, Sender)), Format)
}

func preview(draft models.Draft) Result {
	result := Result{Draft: draft}
	if !draft.Matched() {
		return result
	}
	tx, err := models.NewTransactionBuilder("preview").FromDraft(draft).Build()
	if err != nil {
		root.Log.Debug("No transaction preview", logging.F("error", err.Error()))
		return result
	}
	result.FormattedAmount = tx.FormattedAmount()
	result.TxDate = tx.TxDate()
	result.TxTime = tx.TxTime()
	return result
}
