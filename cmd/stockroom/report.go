package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/stockroom/inventory"
	"github.com/warp/stockroom/reporting"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Reports over movement history",
	}
	cmd.AddCommand(newMonthlyCmd(a))
	return cmd
}

func newMonthlyCmd(a *app) *cobra.Command {
	now := time.Now().UTC()
	var (
		year     int
		month    int
		facility string
		employee string
	)
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Withdrawals and returns of closed entry sessions in one month",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			report, err := reporting.NewReporter(st).Monthly(context.Background(), reporting.MonthlyQuery{
				Year:       year,
				Month:      time.Month(month),
				FacilityID: inventory.FacilityID(facility),
				EmployeeID: inventory.EmployeeID(employee),
			})
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printMonthly(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", now.Year(), "report year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "report month (1-12)")
	cmd.Flags().StringVar(&facility, "facility", "", "only this facility ID")
	cmd.Flags().StringVar(&employee, "employee", "", "only this employee ID")
	return cmd
}

func printMonthly(out io.Writer, r *reporting.MonthlyReport) {
	fmt.Fprintf(out, "Monthly report %04d-%02d\n", r.Year, int(r.Month))
	fmt.Fprintf(out, "  Movements:   %d\n", r.Totals.Movements)
	fmt.Fprintf(out, "  Withdrawals: %d\n", r.Totals.Withdrawals)
	fmt.Fprintf(out, "  Returns:     %d\n", r.Totals.Returns)
	fmt.Fprintf(out, "  Balance:     %d\n", r.Totals.Balance)
	fmt.Fprintf(out, "  Return rate: %s\n\n", r.Totals.ReturnRate.StringFixed(4))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MATERIAL\tWITHDRAWALS\tRETURNS\tBALANCE\tSTOCK")
	for _, m := range r.Materials {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", m.MaterialName, m.Withdrawals, m.Returns, m.Balance, m.CurrentStock)
	}
	w.Flush()
}
