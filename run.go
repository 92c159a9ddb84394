package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zwazel/coding-battle-backend/server"
)

func newRunCmd() *cobra.Command {
	var ticks int
	cmd := &cobra.Command{
		Use:   "run <script.py>",
		Short: "Run one simulation locally and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer server.SyncLogger()

			runs, err := server.NewRunManager(cfg)
			if err != nil {
				return err
			}
			var requested *int
			if cmd.Flags().Changed("ticks") {
				requested = &ticks
			}
			n, err := runs.ResolveTicks(requested)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res := runs.Execute(cmd.Context(), server.RunRequest{Script: f, Ticks: n})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Failed() {
				return fmt.Errorf("run %s stopped at tick %d: %s", res.RunID, res.FinalState.Tick, res.ErrorKind)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&ticks, "ticks", "n", server.DefaultTicks, "tick budget for the run")
	return cmd
}
