package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/stockroom/reporting"
)

func newAuditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Compare live stock with opening stock plus every movement",
		Long: `Replays every stored movement against each material's opening stock.
Exits non-zero when any material's live stock differs from the replay.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			report, err := reporting.NewReporter(st).Audit(context.Background())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				printAuditTable(out, report)
			}
			if !report.OK() {
				return fmt.Errorf("%d material(s) out of balance", report.Discrepancies)
			}
			return nil
		},
	}
}

func printAuditTable(out io.Writer, report *reporting.AuditReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MATERIAL\tOPENING\tRETURNS\tWITHDRAWALS\tEXPECTED\tACTUAL\tDIFF")
	for _, l := range report.Lines {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%+d\n",
			l.MaterialName, l.Opening, l.Returns, l.Withdrawals, l.Expected, l.Actual, l.Difference)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d materials, %d out of balance\n", len(report.Lines), report.Discrepancies)
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
