package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rl1809/item-ledger/internal/core/domain"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the balances and history tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("schema up to date")
			return nil
		},
	}
}

func NewBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <owner> <item>",
		Short: "Show how much of an item an owner holds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			qty, err := a.Ledger.GetQuantity(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, domain.Balance{Owner: args[0], ItemCode: args[1], Quantity: qty},
				fmt.Sprintf("%s %s %d", args[0], args[1], qty))
		},
	}
}

func NewAddCommand(opts *RootOptions) *cobra.Command {
	return newMutationCommand(opts, "add", "Give an owner some of an item")
}

func NewSubtractCommand(opts *RootOptions) *cobra.Command {
	return newMutationCommand(opts, "subtract", "Take some of an item from an owner")
}

func newMutationCommand(opts *RootOptions, op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op + " <owner> <item> <quantity> [reason]",
		Short: short,
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: quantity %q", domain.ErrInvalidArgument, args[2])
			}
			reason := ""
			if len(args) == 4 {
				reason = args[3]
			}

			ctx := cmd.Context()
			a, _, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			var current int64
			if op == "add" {
				current, err = a.Ledger.Add(ctx, args[0], args[1], qty, reason)
			} else {
				current, err = a.Ledger.Subtract(ctx, args[0], args[1], qty, reason)
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, domain.Balance{Owner: args[0], ItemCode: args[1], Quantity: current},
				fmt.Sprintf("%s %s %d", args[0], args[1], current))
		},
	}
}

func NewSupplyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "supply <item>",
		Short: "Show the total quantity of an item across all owners",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			total, err := a.Ledger.TotalSupply(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, map[string]any{"item_code": args[0], "total": total},
				fmt.Sprintf("%s %d", args[0], total))
		},
	}
}

func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var filter domain.HistoryFilter

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent ledger changes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			entries, err := a.Ledger.History(ctx, filter)
			if err != nil {
				return err
			}
			if opts.JSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%s\t%s\t%+d\t%d\t%s\n",
					e.ID, e.OccurredAt, e.Owner, e.ItemCode, e.Change, e.RunningTotal, e.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Owner, "owner", "", "only this owner")
	cmd.Flags().StringVar(&filter.ItemCode, "item", "", "only this item code")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum entries")

	return cmd
}

func NewTrimCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trim",
		Short: "Run one history trim now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			deleted, err := a.Reaper.Trim(ctx)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, map[string]int64{"deleted": deleted},
				fmt.Sprintf("deleted %d", deleted))
		},
	}
}

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run background history sweeps until interrupted",
		Long: `Run the history sweeper on the configured schedule.

Other processes mutating the same store may run with reaper.mode=background
and leave trimming to this one. Set redis_addr so that several sweepers
never trim at the same time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if a.Sweeper == nil {
				return fmt.Errorf("serve requires reaper.mode=background")
			}
			if err := a.Migrate(ctx); err != nil {
				return err
			}
			a.Start(ctx)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			logger.Info("shutting down...")
			return nil
		},
	}
}

func printResult(w io.Writer, opts *RootOptions, v any, text string) error {
	if opts.JSON {
		return json.NewEncoder(w).Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
