package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	cachefx "catalog-feed-miner/cache/fx"
	"catalog-feed-miner/config"
	dbfx "catalog-feed-miner/db/fx"
	appfx "catalog-feed-miner/internal/app/fx"
	"catalog-feed-miner/internal/feed"
	"catalog-feed-miner/internal/pipeline"
	pipelinefx "catalog-feed-miner/internal/pipeline/fx"
	"catalog-feed-miner/internal/product"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		listingURL   string
		manifestPath string
		urls         []string
		outDir       string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and write the feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := usagef(cmd, len(args) > 0); err != nil {
				return err
			}

			v := flags.viper()
			if strings.TrimSpace(outDir) != "" {
				v.Set("FEED_OUT_DIR", outDir)
			}

			if _, err := config.NewConfig(v); err != nil {
				writePlaceholderFeeds(cmd.Context(), v)
				return err
			}

			var driver *pipeline.Driver
			var cfg *config.Config
			app := fx.New(
				fx.NopLogger,
				appfx.CoreAppOptions,
				fx.Decorate(func(*viper.Viper) *viper.Viper { return v }),
				dbfx.Module,
				dbfx.SQLiteModule,
				cachefx.Module,
				pipelinefx.Module,
				fx.Populate(&driver, &cfg),
			)

			startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer stopCancel()
				_ = app.Stop(stopCtx)
			}()

			rep, runErr := driver.Run(cmd.Context(), pipeline.Input{
				URLs:         urls,
				ListingURL:   listingURL,
				ManifestPath: manifestPath,
			})
			if rep != nil {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, rep.String())
				for _, f := range rep.Feeds {
					if f.Err == nil {
						fmt.Fprintln(out, f.Path)
					}
				}
				fmt.Fprintln(out, filepath.Join(cfg.Feed.OutDir, pipeline.DebugReportName))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&listingURL, "listing-url", "", "Listing page to crawl (default SITE_LISTING_URL)")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Manifest file of product URLs; skips the crawl")
	cmd.Flags().StringArrayVar(&urls, "url", nil, "Product URL to process (repeatable); skips the crawl")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory for feeds (default FEED_OUT_DIR)")
	return cmd
}

// writePlaceholderFeeds leaves empty but well-formed feeds behind when the
// configuration is rejected, as long as the output directory is known.
func writePlaceholderFeeds(ctx context.Context, v *viper.Viper) {
	outDir := strings.TrimSpace(v.GetString("FEED_OUT_DIR"))
	if outDir == "" {
		return
	}
	w := feed.NewWriter(outDir, feed.Channel{
		Title:       strings.TrimSpace(v.GetString("SITE_DEFAULT_BRAND")) + " Product Feed",
		Link:        strings.TrimSpace(v.GetString("SITE_BASE_URL")),
		Description: "Product feed for Google Shopping",
	}, nil, nil)
	_, _ = w.WriteAll(ctx, []product.Record{})
}
