package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"catalog-feed-miner/internal/extract"
	"catalog-feed-miner/internal/fetcher"
	"catalog-feed-miner/internal/imagecheck"
	"catalog-feed-miner/internal/listing"
	"catalog-feed-miner/internal/product"
)

func newLinksCmd(flags *rootFlags) *cobra.Command {
	var listingURL string

	cmd := &cobra.Command{
		Use:   "links",
		Short: "Print the product links found on a listing page and its pagination",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if strings.TrimSpace(listingURL) == "" {
				listingURL = cfg.Site.ListingURL
			}

			crawler, err := listing.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			res, err := crawler.Crawl(cmd.Context(), listingURL)
			if err != nil {
				return err
			}
			for _, u := range res.URLs {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			for _, p := range res.Pages {
				if p.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "listing page %s: %v\n", p.URL, p.Err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listingURL, "listing-url", "", "Listing page to crawl (default SITE_LISTING_URL)")
	return cmd
}

func newExtractCmd(flags *rootFlags) *cobra.Command {
	var pageURL string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Fetch one product page and print the extracted record as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := usagef(cmd, strings.TrimSpace(pageURL) == ""); err != nil {
				return err
			}
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			body, err := fetcher.NewFromConfig(cfg, nil, logger).Fetch(cmd.Context(), pageURL)
			if err != nil {
				return err
			}
			rec, err := extract.New(extract.OptionsFromConfig(cfg)).Extract(pageURL, body)
			if err != nil {
				return err
			}
			if err := product.Validate(rec); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				product.Record
				PriceFallback bool `json:"price_fallback"`
			}{rec, rec.PriceFallback})
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "", "Product page URL")
	return cmd
}

func newImageCmd(flags *rootFlags) *cobra.Command {
	var imageURL string

	cmd := &cobra.Command{
		Use:   "image",
		Short: "Normalize and check one image URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := usagef(cmd, strings.TrimSpace(imageURL) == ""); err != nil {
				return err
			}
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			v, err := imagecheck.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			res := v.Validate(cmd.Context(), imageURL)
			switch {
			case res.OK && res.Err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", res.URL)
			case res.OK:
				fmt.Fprintf(cmd.OutOrStdout(), "unchecked %s: %v\n", res.URL, res.Err)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "rejected %s: %v\n", imageURL, res.Err)
				return fmt.Errorf("image rejected")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&imageURL, "url", "", "Image URL (relative URLs resolve against SITE_BASE_URL)")
	return cmd
}
