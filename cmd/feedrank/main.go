package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	offline bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "feedrank",
		Short:         "Rank stock-commentary feeds and detect community and market trends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().BoolVar(&offline, "offline", false, "skip market data providers")

	root.AddCommand(rankCmd())
	root.AddCommand(feedCmd())
	root.AddCommand(trendsCmd())
	root.AddCommand(marketCmd())
	root.AddCommand(reputationCmd())
	root.AddCommand(importCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func rankCmd() *cobra.Command {
	var (
		strategy   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "rank [file]",
		Short: "Rank posts from a JSON file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runRank(cmd.Context(), path, strategy, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "ranking strategy (overrides the input file)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func feedCmd() *cobra.Command {
	var (
		userID     int64
		strategy   string
		page       int
		pageSize   int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show a ranked feed page from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(cmd.Context(), userID, strategy, page, pageSize, jsonOutput)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "personalize for this user id")
	cmd.Flags().StringVar(&strategy, "strategy", "", "ranking strategy (default: from config)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "posts per page (default: from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func trendsCmd() *cobra.Command {
	var (
		detect     bool
		kind       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Show trending tickers, sectors and insight types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrends(cmd.Context(), detect, kind, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&detect, "detect", false, "persist the run and send alerts")
	cmd.Flags().StringVar(&kind, "kind", "", "only show one kind: ticker, sector or insight_type")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func marketCmd() *cobra.Command {
	var (
		refresh    bool
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "market",
		Short: "Show market trends for recently discussed tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMarket(cmd.Context(), refresh, limit, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch market data before listing")
	cmd.Flags().IntVar(&limit, "limit", 50, "max trends to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func reputationCmd() *cobra.Command {
	var (
		reconcile  bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "reputation [user-id]",
		Short: "Show or reconcile user reputation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReputation(cmd.Context(), args, reconcile, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "recompute and store every user's reputation")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func importCmd() *cobra.Command {
	var reconcile bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load users, posts and preferences from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0], reconcile)
		},
	}

	cmd.Flags().BoolVar(&reconcile, "reconcile", true, "recompute reputation after loading")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
