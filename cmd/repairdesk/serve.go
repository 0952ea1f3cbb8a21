package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/repairdesk/internal/clock"
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/internal/migration"
	"github.com/smallbiznis/repairdesk/internal/observability"
	"github.com/smallbiznis/repairdesk/internal/server"
	"github.com/smallbiznis/repairdesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server: pages, intake API and admin export",
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv(gin.EnvGinMode) == "" {
				gin.SetMode(gin.ReleaseMode)
			}

			app := fx.New(
				withZapLogger(),

				// Core Infrastructure
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				migration.Module,
				clock.Module,

				// HTTP surface and the domains behind it
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
