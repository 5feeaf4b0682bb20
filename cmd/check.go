// Package cmd defines and implements the CLI commands for the statusgate
// executable.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errUnavailable is surfaced when every fetch tier is exhausted. The CLI
// deliberately does not distinguish "identifier does not exist" from
// "could not verify": the mitigation layer makes that call unreliable.
var errUnavailable = errors.New("status temporarily unavailable, retry later")

// newCheckCmd creates the 'check' subcommand: one fetch through the full
// escalation ladder, result printed as JSON on stdout.
func newCheckCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "check <identifier>",
		Short: "Fetches the status list for one identifier",
		Long: `Runs a single identifier through the fetch pipeline: fingerprinted
HTTP first, then the headless browser, then verified proxies if enabled.
Prints the resulting status records as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckCommand(cmd, args[0], all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print the full status history instead of only the most recent record")
	return cmd
}

func runCheckCommand(cmd *cobra.Command, identifier string, all bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	records, err := appInstance.Pipeline().Check(cmd.Context(), identifier, all)
	if err != nil {
		return fmt.Errorf("check %s: %w", identifier, err)
	}
	if len(records) == 0 {
		return errUnavailable
	}

	type entry struct {
		Name            string `json:"name"`
		TimestampMillis int64  `json:"timestamp_millis"`
	}
	out := make([]entry, 0, len(records))
	for _, rec := range records {
		out = append(out, entry{Name: rec.Name, TimestampMillis: rec.TimestampMillis})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	appInstance.Logger().Debug("check command finished",
		zap.String("identifier", identifier),
		zap.Int("records", len(records)))
	return nil
}
