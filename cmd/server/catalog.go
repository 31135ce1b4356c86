package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"econglobe.io/explorer/internal/catalog"
)

func newCountriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "countries [term]",
		Short: "List countries, optionally filtered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			countries, err := a.catalog().ListCountries(cmd.Context())
			if err != nil {
				return err
			}
			term := ""
			if len(args) == 1 {
				term = args[0]
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tISO2\tNAME")
			for _, c := range catalog.FilterCountries(countries, term, nil) {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.ISO2Code, c.Name)
			}
			return tw.Flush()
		},
	}
}

func newSeriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "series <country> <indicator>",
		Short: "Print one indicator series for a country",
		Long: `Print one indicator series, oldest year first.

The country may be given by id (FRA) or name. The indicator is one of:
` + indicatorHelp(),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			indicator, err := resolveIndicator(args[1])
			if err != nil {
				return err
			}
			client := a.catalog()
			countries, err := client.ListCountries(cmd.Context())
			if err != nil {
				return err
			}
			country, err := resolveCountry(countries, args[0])
			if err != nil {
				return err
			}
			chart, err := client.Chart(cmd.Context(), country.ID, indicator)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", country.Name, chart.Name)
			if len(chart.Series) == 0 {
				fmt.Fprintln(out, "no data")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "YEAR\tVALUE")
			for _, p := range chart.Series {
				fmt.Fprintf(tw, "%s\t%s\n", p.Name, formatValue(p.Value))
			}
			return tw.Flush()
		},
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func indicatorHelp() string {
	var b strings.Builder
	for _, ind := range catalog.Indicators {
		fmt.Fprintf(&b, "  %-16s %s\n", ind.ID, ind.Name)
	}
	return b.String()
}

func resolveIndicator(arg string) (catalog.Indicator, error) {
	if ind, ok := catalog.LookupIndicator(strings.ToUpper(arg)); ok {
		return ind, nil
	}
	for _, ind := range catalog.Indicators {
		if strings.EqualFold(ind.Name, arg) {
			return ind, nil
		}
	}
	return catalog.Indicator{}, fmt.Errorf("unknown indicator %q", arg)
}

// resolveCountry accepts an id, an exact name, or a name fragment that
// matches exactly one country.
func resolveCountry(countries []catalog.Country, arg string) (catalog.Country, error) {
	if c, ok := catalog.FindCountry(countries, arg); ok {
		return c, nil
	}
	for _, c := range countries {
		if strings.EqualFold(c.Name, strings.TrimSpace(arg)) {
			return c, nil
		}
	}
	matches := catalog.FilterCountries(countries, arg, nil)
	switch len(matches) {
	case 0:
		return catalog.Country{}, fmt.Errorf("no country matches %q", arg)
	case 1:
		return matches[0], nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name)
	}
	return catalog.Country{}, fmt.Errorf("%q is ambiguous: %s", arg, strings.Join(names, ", "))
}
