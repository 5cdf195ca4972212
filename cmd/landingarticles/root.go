package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"LandingArticles/internal/app"
	"LandingArticles/internal/config"
	"LandingArticles/internal/logging"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile string
	envFile string
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "landingarticles",
		Short: "Fill one landing article per UTC day from registered feeds",
		Long: `landingarticles polls registered RSS/Atom feeds, extracts a clean Markdown
article and commits exactly one article per calendar day.

Example usage:
  landingarticles serve                 # HTTP API and daily scheduler
  landingarticles fill-today            # fill today's slot once
  landingarticles backfill --days 7     # fill the last seven days
  landingarticles feeds add https://example.com/rss --name Example`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.init()
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file (default $LANDING_ARTICLES_CONFIG)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newServeCmd(c),
		newFillTodayCmd(c),
		newBackfillCmd(c),
		newMigrateCmd(c),
		newFeedsCmd(c),
	)
	return root
}

func (c *cli) init() error {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if !strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

// withApp builds the application for the duration of fn.
func (c *cli) withApp(ctx context.Context, fn func(*app.Application) error) error {
	application, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			c.logger.Warn("close failed", "error", cerr)
		}
	}()
	return fn(application)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
