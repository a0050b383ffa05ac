package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nelhattab/electratrack/internal/engine"
	"github.com/nelhattab/electratrack/internal/export"
	"github.com/nelhattab/electratrack/internal/ingest"
	"github.com/nelhattab/electratrack/internal/schema"
	"github.com/nelhattab/electratrack/internal/tabular"
)

var (
	exportOut     string
	exportFilters []string
	exportAlerts  bool
	exportAsOf    string
)

var exportCmd = &cobra.Command{
	Use:   "export <slot> <file>",
	Short: "Filter a data file and write the result as a workbook",
	Long:  "Runs the same derive and filter pass the dashboard does, without a server. Filters are given as --filter param=value using the slot's filter params; --alerts exports the expiry-window rows instead.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, path := args[0], args[1]

		fam, err := schema.FamilyFor(slot)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "open %s", path)
		}
		defer f.Close()

		ds, err := ingest.Parse(path, f)
		if err != nil {
			return err
		}

		if fam.TerminationColumn != "" {
			ds = tabular.WithStatus(ds, fam.TerminationColumn)
		}

		var result *tabular.Dataset
		if exportAlerts {
			if fam.EndColumn == "" {
				return eris.Errorf("slot %q has no end date column", slot)
			}
			asOf := time.Now().UTC()
			if exportAsOf != "" {
				asOf, err = time.Parse("2006-01-02", exportAsOf)
				if err != nil {
					return eris.Wrap(err, "parse --as-of")
				}
			}
			result = engine.ExpiringSoon(ds, fam.EndColumn, asOf)
		} else {
			values := make(map[string]string)
			for _, raw := range exportFilters {
				param, value, found := strings.Cut(raw, "=")
				if !found {
					return eris.Errorf("bad --filter %q (want param=value)", raw)
				}
				values[param] = value
			}
			result = engine.Filter(ds, fam.Spec(values))
		}

		blob, err := export.XLSX(result)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, blob, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", exportOut)
		}
		fmt.Printf("%d of %d rows -> %s\n", result.Len(), ds.Len(), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "export.xlsx", "output workbook path")
	exportCmd.Flags().StringArrayVar(&exportFilters, "filter", nil, "filter as param=value (repeatable)")
	exportCmd.Flags().BoolVar(&exportAlerts, "alerts", false, "export rows expiring within one month")
	exportCmd.Flags().StringVar(&exportAsOf, "as-of", "", "alert reference date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(exportCmd)
}
