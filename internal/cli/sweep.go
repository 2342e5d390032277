package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire lapsed wars and parties once",
	Long: `Run a single expiry pass over the database. The daemon does this
on its own; the command exists for cron-driven setups and diagnostics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, eng, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		now := eng.Clock().Now()
		wars, err := eng.SweepWars(now)
		if err != nil {
			return err
		}
		parties, err := eng.SweepParties(now)
		if err != nil {
			return err
		}
		fmt.Printf("expired %d wars, %d parties\n", wars, parties)
		return nil
	},
}
