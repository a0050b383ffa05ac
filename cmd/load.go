package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nelhattab/electratrack/internal/ingest"
	"github.com/nelhattab/electratrack/internal/schema"
	"github.com/nelhattab/electratrack/internal/store"
)

var loadSession string

var loadCmd = &cobra.Command{
	Use:   "load <slot> <file>",
	Short: "Load a data file into a slot and print a summary",
	Long:  "Parses a contracts or substations file the same way an upload would. With --session and a configured store, the dataset is persisted so a web session can pick it up.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("load"); err != nil {
			return err
		}
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

		fmt.Printf("slot:    %s (%s)\n", fam.Slot, fam.Label)
		fmt.Printf("rows:    %d\n", ds.Len())
		fmt.Printf("columns: %d\n", len(ds.Columns))
		for _, col := range ds.Columns {
			fmt.Printf("  - %s\n", col)
		}

		if loadSession == "" {
			return nil
		}
		st, err := store.Open(cmd.Context(), cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.TTL)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("no store configured (set store.driver to sqlite or postgres)")
		}
		defer st.Close()

		if err := st.SaveDataset(cmd.Context(), loadSession, slot, ds); err != nil {
			return err
		}
		zap.L().Info("dataset persisted",
			zap.String("slot", slot),
			zap.String("session", loadSession),
			zap.Int("rows", ds.Len()),
		)
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadSession, "session", "", "persist the dataset under this session ID")
	rootCmd.AddCommand(loadCmd)
}
