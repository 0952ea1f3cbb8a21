package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/smallbiznis/repairdesk/internal/audit"
	"github.com/smallbiznis/repairdesk/internal/clock"
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/internal/export"
	exportdomain "github.com/smallbiznis/repairdesk/internal/export/domain"
	"github.com/smallbiznis/repairdesk/internal/migration"
	"github.com/smallbiznis/repairdesk/internal/observability"
	"github.com/smallbiznis/repairdesk/internal/observability/logger"
	"github.com/smallbiznis/repairdesk/internal/request/repository"
	"github.com/smallbiznis/repairdesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored request as CSV, newest first",
		Long: `Write the same CSV the admin endpoint serves.

Examples:
  repairdesk export                 # requests_YYYYMMDD_HHMMSS.csv in the current directory
  repairdesk export -o -            # stdout
  repairdesk export -o backup.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg config.Config
				svc exportdomain.Service
			)

			app := fx.New(
				withZapLogger(),
				// stdout may carry the CSV itself.
				fx.Decorate(func(c logger.Config) logger.Config {
					c.Output = "stderr"
					return c
				}),
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				migration.Module,
				clock.Module,
				audit.Module,
				fx.Provide(repository.Provide),
				export.Module,
				fx.Populate(&cfg, &svc),
			)

			return runOnce(cmd.Context(), app, func(ctx context.Context) (err error) {
				exp, err := svc.Export(ctx, cfg.AdminToken)
				if err != nil {
					return err
				}

				var w io.Writer = cmd.OutOrStdout()
				target := output
				if target == "" {
					target = exp.Filename
				}
				if target != "-" {
					f, err := os.Create(target)
					if err != nil {
						return err
					}
					defer func() {
						if cerr := f.Close(); cerr != nil && err == nil {
							err = cerr
						}
					}()
					w = f
				}

				n, err := exp.WriteTo(w)
				if err != nil {
					return fmt.Errorf("export %s: %w", exp.ID, err)
				}
				if target != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", target, n)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `output file, "-" for stdout (default: generated filename)`)
	return cmd
}
