package main

import (
	"fmt"
	"time"

	"github.com/dgallion1/lexview/internal/catalog"
	"github.com/dgallion1/lexview/internal/fetch"
	"github.com/spf13/cobra"
)

var (
	catalogPath string
	baseURL     string
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "lexctl",
	Short: "Browse and search the legal text catalog",
	Long: `lexctl lists the documents of the catalog, searches a document the way
the viewer does, and renders its content area as HTML.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog YAML file (default: embedded catalog)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "fetch html_path documents from this server (default: bundled copies)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "fetch timeout")
}

func loadCatalog() (*catalog.Catalog, error) {
	if catalogPath != "" {
		c, err := catalog.LoadFile(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("loading catalog %s: %w", catalogPath, err)
		}
		return c, nil
	}
	return catalog.Default()
}

// newFetcher returns the fetcher for raw markup and a function releasing it.
func newFetcher() (fetch.Fetcher, func(), error) {
	if baseURL == "" {
		return catalog.AssetFetcher(), func() {}, nil
	}
	c, err := fetch.NewClient(baseURL, timeout)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}
