package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"econglobe.io/explorer/internal/core"
)

func newCompareCmd(a *app) *cobra.Command {
	var style string
	cmd := &cobra.Command{
		Use:   "compare <countryA> <countryB>",
		Short: "Ask the configured model to compare two economies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			countries, err := a.catalog().ListCountries(ctx)
			if err != nil {
				return err
			}
			countryA, err := resolveCountry(countries, args[0])
			if err != nil {
				return err
			}
			countryB, err := resolveCountry(countries, args[1])
			if err != nil {
				return err
			}

			completer, closeCompleter, err := a.completer(ctx)
			if err != nil {
				return err
			}
			defer closeCompleter()

			session := core.NewComparisonSession(completer, a.logger.Named("ai"))
			if _, err := session.SelectCountry(core.SideA, countryA); err != nil {
				return err
			}
			if _, err := session.SelectCountry(core.SideB, countryB); err != nil {
				return err
			}
			snap, err := session.Analyze(ctx)
			if err != nil {
				return err
			}
			if snap.Phase == core.PhaseFailed {
				return errors.New(snap.Result)
			}

			rendered, err := renderMarkdown(snap.Result, style)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().StringVar(&style, "style", "auto", "glamour style: auto, dark, light or notty")
	return cmd
}

func renderMarkdown(md, style string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(80)}
	if style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	return r.Render(md)
}
