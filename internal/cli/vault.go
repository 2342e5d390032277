package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/guildforge/guildhall/internal/engine"
)

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultBalanceCmd)
	vaultCmd.AddCommand(vaultDepositCmd)
	vaultCmd.AddCommand(vaultWithdrawCmd)
	vaultCmd.AddCommand(vaultHistoryCmd)
	vaultCmd.AddCommand(vaultUnitsCmd)

	vaultHistoryCmd.Flags().Int("limit", 20, "Maximum entries to show")
	for _, c := range []*cobra.Command{vaultDepositCmd, vaultWithdrawCmd} {
		c.Flags().String("actor", "", "Acting player id (default: system)")
		c.Flags().String("description", "", "Ledger entry description")
	}
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Inspect guild vaults",
}

var vaultBalanceCmd = &cobra.Command{
	Use:   "balance GUILD_ID",
	Short: "Show a guild's vault balance in denominated units",
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

		balance, err := eng.Balance(guildID)
		if err != nil {
			return err
		}
		units, err := eng.ToUnits(balance)
		if err != nil {
			return err
		}
		fmt.Printf("balance: %d\n", balance)
		for _, u := range units {
			fmt.Printf("  %-12s %d\n", u.Denomination.Name, u.Count)
		}
		return nil
	},
}

var vaultDepositCmd = &cobra.Command{
	Use:   "deposit GUILD_ID AMOUNT",
	Short: "Deposit into a guild's vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVaultMutation(cmd, args, func(eng *engine.Engine, guildID, actorID uuid.UUID, amount int64, desc string) (int64, error) {
			return eng.Deposit(actorID, guildID, amount, desc)
		})
	},
}

var vaultWithdrawCmd = &cobra.Command{
	Use:   "withdraw GUILD_ID AMOUNT",
	Short: "Withdraw from a guild's vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVaultMutation(cmd, args, func(eng *engine.Engine, guildID, actorID uuid.UUID, amount int64, desc string) (int64, error) {
			return eng.Withdraw(actorID, guildID, amount, desc)
		})
	},
}

func runVaultMutation(cmd *cobra.Command, args []string,
	apply func(eng *engine.Engine, guildID, actorID uuid.UUID, amount int64, desc string) (int64, error)) error {
	guildID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid guild id %q: %w", args[0], err)
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	actorID := uuid.Nil
	if raw, _ := cmd.Flags().GetString("actor"); raw != "" {
		if actorID, err = uuid.Parse(raw); err != nil {
			return fmt.Errorf("invalid actor id %q: %w", raw, err)
		}
	}
	desc, _ := cmd.Flags().GetString("description")

	db, eng, err := openStack(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	balance, err := apply(eng, guildID, actorID, amount, desc)
	if err != nil {
		return err
	}
	fmt.Printf("balance: %d\n", balance)
	return nil
}

var vaultHistoryCmd = &cobra.Command{
	Use:   "history GUILD_ID",
	Short: "Show recent vault transactions, newest first",
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

		history, err := eng.TransactionHistory(guildID, limit)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Println("no transactions")
			return nil
		}
		for _, tx := range history {
			fmt.Printf("%s  %-8s %12d  balance=%d  %s\n",
				tx.Timestamp.Format("2006-01-02 15:04:05"),
				tx.Kind, tx.Amount, tx.BalanceAfter, tx.Description)
		}
		return nil
	},
}

var vaultUnitsCmd = &cobra.Command{
	Use:   "units AMOUNT",
	Short: "Decompose an amount into denominated units",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}
		db, eng, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		units, err := eng.ToUnits(amount)
		if err != nil {
			return err
		}
		for _, u := range units {
			fmt.Printf("%-12s %d\n", u.Denomination.Name, u.Count)
		}
		return nil
	},
}
