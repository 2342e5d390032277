package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(diplomacyCmd)
	diplomacyCmd.AddCommand(diplomacyRelationsCmd)
	diplomacyCmd.AddCommand(diplomacyWarsCmd)
	diplomacyCmd.AddCommand(diplomacyRatioCmd)

	diplomacyWarsCmd.Flags().Int("limit", 20, "Maximum history entries to show")
}

var diplomacyCmd = &cobra.Command{
	Use:   "diplomacy",
	Short: "Inspect diplomatic relations and wars",
}

var diplomacyRelationsCmd = &cobra.Command{
	Use:   "relations GUILD_ID",
	Short: "Show a guild's relations and pending requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guildID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid guild id %q: %w", args[0], err)
		}
		db, eng, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		rels, err := eng.RelationsFor(guildID)
		if err != nil {
			return err
		}
		if len(rels) == 0 {
			fmt.Println("no relations")
			return nil
		}
		for _, rel := range rels {
			other := rel.GuildA
			if other == guildID {
				other = rel.GuildB
			}
			fmt.Printf("%s  %-9s %-7s initiated=%s\n", other, rel.Type, rel.Status, rel.InitiatorID)
		}
		return nil
	},
}

var diplomacyWarsCmd = &cobra.Command{
	Use:   "wars GUILD_ID",
	Short: "Show a guild's active wars and recent history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guildID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid guild id %q: %w", args[0], err)
		}
		limit, _ := cmd.Flags().GetInt("limit")
		db, eng, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		active, err := eng.ActiveWars(guildID)
		if err != nil {
			return err
		}
		for _, war := range active {
			fmt.Printf("ACTIVE  %s  %s vs %s  expires %s\n",
				war.ID, war.DeclaringGuildID, war.DefendingGuildID,
				war.ExpiresAt().Format("2006-01-02 15:04:05"))
		}

		history, err := eng.WarHistory(guildID, limit)
		if err != nil {
			return err
		}
		for _, war := range history {
			outcome := "draw"
			if winner := war.Winner(); winner != uuid.Nil {
				outcome = "won by " + winner.String()
			}
			fmt.Printf("ENDED   %s  %s vs %s  %s\n",
				war.ID, war.DeclaringGuildID, war.DefendingGuildID, outcome)
		}
		if len(active) == 0 && len(history) == 0 {
			fmt.Println("no wars")
		}
		return nil
	},
}

var diplomacyRatioCmd = &cobra.Command{
	Use:   "ratio GUILD_ID",
	Short: "Show a guild's win/loss ratio over surrendered wars",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guildID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid guild id %q: %w", args[0], err)
		}
		db, eng, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ratio, err := eng.WinLossRatio(guildID)
		if err != nil {
			return err
		}
		fmt.Printf("%.3f\n", ratio)
		return nil
	},
}
