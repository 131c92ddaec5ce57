package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/settlement-quoter/calendar"
	"github.com/warp/settlement-quoter/quote"
)

type quoteFlags struct {
	capital   string
	intereses string
	costos    string
	plan      string
	cuotas    int
}

func newQuoteCmd() *cobra.Command {
	var f quoteFlags

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Print a quote breakdown for the given amounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuote(cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.capital, "capital", "", "Capital amount")
	cmd.Flags().StringVar(&f.intereses, "intereses", "", "Interest amount")
	cmd.Flags().StringVar(&f.costos, "costos", "", "Costs amount")
	cmd.Flags().StringVar(&f.plan, "plan", "", "Plan for large debts: contado, 6meses, 1año, 2años")
	cmd.Flags().IntVar(&f.cuotas, "cuotas", 0, "Installment count (0 = plan minimum)")
	return cmd
}

func runQuote(w io.Writer, f quoteFlags) error {
	debt, err := quote.ParseParams(url.Values{
		"capital":   {f.capital},
		"intereses": {f.intereses},
		"costos":    {f.costos},
	})
	if err != nil {
		return err
	}

	s := quote.NewState(debt)
	if f.plan != "" {
		if s, err = quote.Update(s, quote.PlanSelected{Plan: quote.PlanID(f.plan)}, calendar.Rules{}); err != nil {
			return err
		}
	}
	if f.cuotas > 0 {
		if s, err = quote.Update(s, quote.InstallmentsChanged{Count: f.cuotas}, calendar.Rules{}); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "Deuda total:\t%s\t(%s)\n", quote.FormatCOP(debt.Total()), s.Class())

	b, ok := s.Breakdown()
	if !ok {
		fmt.Fprintln(tw, "Planes disponibles:")
		for _, p := range quote.OfferedPlans(s.Class()) {
			fmt.Fprintf(tw, "  %s\t%s\t%s%% descuento\t%d-%d cuotas\n",
				p.ID, p.Name, p.DiscountRate.Shift(2).String(), p.MinInstallments, p.MaxInstallments)
		}
		return nil
	}

	plan, err := quote.LookupPlan(b.Plan)
	if err != nil {
		return err
	}
	rows := [][2]string{
		{"Plan", plan.Label(b.Installments)},
		{"Descuento capital", quote.FormatCOP(b.DiscountAmount)},
		{"Capital a pagar", quote.FormatCOP(b.CapitalToPay)},
		{"Intereses condonados", quote.FormatCOP(b.Interest)},
		{"Costos condonados", quote.FormatCOP(b.Costs)},
		{"Ahorro total", quote.FormatCOP(b.TotalSaved)},
		{"Cuotas", strconv.Itoa(b.Installments)},
		{"Valor cuota", quote.FormatCOP(b.InstallmentValue)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	return nil
}
