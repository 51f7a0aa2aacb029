package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/openshare-counts/internal/app"
	"github.com/samvad-hq/openshare-counts/internal/config"
	"github.com/samvad-hq/openshare-counts/internal/logger"
	"github.com/samvad-hq/openshare-counts/pkg/counter"
)

var (
	cachePolicy string
	jsonOutput  bool
)

func init() {
	rootCmd.Flags().StringVar(&cachePolicy, "cache-policy", "", "Override cache_policy (cache_then_fetch or cache_first).")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON.")
	rootCmd.AddCommand(providersCmd)
}

var rootCmd = &cobra.Command{
	Use:          "counter <type[,type...]> <url>",
	Short:        "counter resolves share counts for a URL.",
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cachePolicy != "" {
			cfg.CachePolicy = strings.ToLower(strings.TrimSpace(cachePolicy))
		}

		c, err := newCounter(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.Count(cmd.Context(), args[0], args[1], nil)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), res)
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Lists the enabled count providers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := newCounter(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		for _, id := range c.Providers() {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newCounter(ctx context.Context, cfg *config.Config) (*app.Counter, error) {
	log, err := logger.Init(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.NewCounter(ctx, cfg, log)
}

func printResult(w io.Writer, res counter.Result) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(w, res.Total)
	for _, src := range res.Sources {
		note := ""
		switch {
		case src.Stale:
			note = " (stale)"
		case src.Cached:
			note = " (cached)"
		}
		fmt.Fprintf(w, "  %s\t%d%s\n", src.ID, src.Count, note)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(w, "  %s\tfailed: %v\n", f.ID, f.Err)
	}
	return nil
}

// ExecuteContext runs the root command and exits non-zero on error.
func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	_ = logger.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
