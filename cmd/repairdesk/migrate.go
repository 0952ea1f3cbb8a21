package main

import (
	"context"

	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/internal/migration"
	"github.com/smallbiznis/repairdesk/internal/observability"
	"github.com/smallbiznis/repairdesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				withZapLogger(),
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
			)
			return runOnce(cmd.Context(), app, nil)
		},
	}
}

// runOnce starts app, runs fn and stops app again.
func runOnce(ctx context.Context, app *fx.App, fn func(ctx context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	var runErr error
	if fn != nil {
		runErr = fn(ctx)
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
