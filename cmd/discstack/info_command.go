package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"discstack/internal/source"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <input.tbc>...",
		Short: "Show disc type, standard and frame range of each capture",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := ctx.runConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := ctx.newLogger(cmd, cfg.Logging)
			if err != nil {
				return err
			}
			defer closeQuietly(cmd.ErrOrStderr(), "log file", closeLog)

			coll, err := source.OpenCollection(cmd.Context(), args, source.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, coll.Close()) }()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, infoHeaders, infoRows(coll), infoAligns))
			fmt.Fprintf(out, "Collection: %s %s, frames %d..%d (%s)\n",
				coll.Source(0).DiscType(),
				coll.Source(0).Standard(),
				coll.MinimumVbiFrame(),
				coll.MaximumVbiFrame(),
				count(coll.MaximumVbiFrame()-coll.MinimumVbiFrame()+1),
			)
			return nil
		},
	}
}

var (
	infoHeaders = []string{"#", "Capture", "Disc", "Standard", "Metadata", "First", "Last", "Frames"}
	infoAligns  = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}
)

func infoRows(coll *source.Collection) [][]string {
	rows := make([][]string, 0, coll.Len())
	for _, src := range coll.Sources() {
		rows = append(rows, []string{
			strconv.Itoa(src.Index()),
			src.Path(),
			src.DiscType(),
			src.Standard(),
			string(src.MetadataFormat()),
			strconv.Itoa(src.StartVbiFrame()),
			strconv.Itoa(src.EndVbiFrame()),
			count(src.NumberOfFrames()),
		})
	}
	return rows
}
