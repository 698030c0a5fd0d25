package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/event"
	"github.com/personal/ad-lifecycle/pkg/config"
)

var strictNames bool

var validateCmd = &cobra.Command{
	Use:   "validate [ad document]",
	Short: "Validate an ad unit document.",
	Long: "`validate [ad document]` parses a YAML or JSON ad document, " +
		"checks every unit and reports names that would produce invalid event names.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := config.LoadAdDocument(args[0])
		if err != nil {
			return err
		}
		if !doc.Status {
			fmt.Fprintln(cmd.OutOrStdout(), "Document is disabled: no units will be registered")
			return nil
		}

		units, unitErr := service.UnitsFromDocument(doc)
		warnings := printUnits(cmd, units)

		if unitErr != nil {
			return unitErr
		}
		if strictNames && warnings > 0 {
			return fmt.Errorf("%d name warnings", warnings)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d units OK\n", len(units))
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&strictNames, "strict", false, "Treat name warnings as errors")
}

// printUnits writes a table of units and returns the number of name warnings
func printUnits(cmd *cobra.Command, units []ad.UnitConfig) int {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FORMAT\tNAME\tPLACEMENT\tENABLED\tTIMEOUT\tINTERVAL\tWARNINGS")

	warnings := 0
	for _, unit := range units {
		policy, err := ad.ResolvePolicy(unit.Format(), unit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", unit.Key(), err)
			continue
		}
		names := []string{unit.Name()}
		if unit.Placement() != unit.Name() {
			names = append(names, unit.Placement())
		}
		var problems []string
		for _, name := range names {
			if err := event.CheckName(name, event.MaxConfiguredNameLength); err != nil {
				problems = append(problems, err.Error())
			}
		}
		warnings += len(problems)

		note := "-"
		if len(problems) > 0 {
			note = strings.Join(problems, "; ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			unit.Format(), unit.Name(), unit.Placement(), unit.Enabled(),
			policy.LoadTimeout, policy.MinShowInterval, note)
	}
	w.Flush()
	return warnings
}
