package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/taxdesk/internal/bootstrap"
	"github.com/spec-kit/taxdesk/internal/config"
	"github.com/spec-kit/taxdesk/internal/domain"
	"github.com/spec-kit/taxdesk/internal/observability"
	"github.com/spec-kit/taxdesk/internal/persistence"
	"github.com/spec-kit/taxdesk/internal/tax"
)

var errNoDatabase = errors.New("POSTGRES_DSN is required for this command")

type configLoader func() (*config.Config, error)

func newRootCmd(load configLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "taxdeskctl",
		Short:         "Operate a taxdesk deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	subscription := &cobra.Command{
		Use:   "subscription",
		Short: "Manage subscription tiers",
	}
	subscription.AddCommand(newSubscriptionSetCmd(load))

	root.AddCommand(newMigrateCmd(load), subscription, newComputeCmd())
	return root
}

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(load)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSubscriptionSetCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "set <email> <free|premium>",
		Short: "Change the subscription tier of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := domain.SubscriptionType(args[1])
			if !tier.Valid() {
				return fmt.Errorf("unknown subscription type %q", args[1])
			}

			cfg, logger, err := setup(load)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			container, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer container.Close()

			identity, err := container.Credentials.SetSubscription(ctx, args[0], tier)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", identity.Email, identity.SubscriptionType)
			return nil
		},
	}
}

func newComputeCmd() *cobra.Command {
	var tier string
	cmd := &cobra.Command{
		Use:   "compute <income> <deductions>",
		Short: "Evaluate the tax schedule without touching storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			income, err := tax.ParseCents(args[0])
			if err != nil {
				return fmt.Errorf("income: %w", err)
			}
			deductions, err := tax.ParseCents(args[1])
			if err != nil {
				return fmt.Errorf("deductions: %w", err)
			}

			owed, err := tax.Default().ComputeCents(income, deductions, domain.SubscriptionType(tier))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(tax.ToFloat(owed), 'f', 2, 64))
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", string(domain.SubscriptionFree), "subscription tier (free or premium)")
	return cmd
}

// setup loads configuration and requires a database, since every stateful
// command is meaningless against the in-memory stores.
func setup(load configLoader) (*config.Config, *zap.Logger, error) {
	cfg, err := load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Postgres.DSN == "" {
		return nil, nil, errNoDatabase
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
