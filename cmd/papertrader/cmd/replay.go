package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/replay"
)

func newReplayCmd(opts *options) *cobra.Command {
	var eventFirst bool
	c := &cobra.Command{
		Use:   "replay <ticks.csv>",
		Short: "Feed a recorded price file through the ledger",
		Long: `Replay ticks (time,instrument,price) and optional scripted events
(OPEN, OPEN_RISK, ADJUST, CLOSE) against the event log.

Example:
  papertrader replay ticks.csv --db paper.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(func(e *env) error {
				st, err := replay.File(cmd.Context(), args[0], e.book, replay.Options{TickThenEvent: !eventFirst})
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "replayed %d rows: %d ticks (%d stale), %d stop moves, %d opened, %d closed\n",
					st.Rows, st.Ticks, st.Stale, st.StopMoves, st.Opened, st.Closed)
				for _, t := range st.Trades {
					printClosed(cmd, t)
				}
				return err
			})
		},
	}
	c.Flags().BoolVar(&eventFirst, "event-first", false, "apply each row's event before its tick")
	return c
}
