package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/feedrank/internal/feed"
	"github.com/elonfeng/feedrank/internal/scheduler"
	"github.com/elonfeng/feedrank/pkg/insight"
	"github.com/elonfeng/feedrank/pkg/server"
	"github.com/elonfeng/feedrank/pkg/trend"
)

// rankInput is either a bare array of posts or an object carrying posts,
// preferences and a strategy.
type rankInput struct {
	Posts       []insight.PostRecord `json:"posts"`
	Preferences *insight.Preferences `json:"preferences"`
	Strategy    string               `json:"strategy"`
}

func readRankInput(r io.Reader) (*rankInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var in rankInput
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		err = json.Unmarshal(data, &in.Posts)
	} else {
		err = json.Unmarshal(data, &in)
	}
	if err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return &in, nil
}

func runRank(ctx context.Context, path, strategy string, jsonOutput bool) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	in, err := readRankInput(r)
	if err != nil {
		return err
	}
	if strategy != "" {
		in.Strategy = strategy
	}

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	ranked := a.svc.Rank(ctx, insight.NormalizeRecords(in.Posts), in.Preferences.Normalize(), in.Strategy)
	if jsonOutput {
		return printJSON(ranked)
	}
	return printRanked(ranked)
}

func runFeed(ctx context.Context, userID int64, strategy string, page, pageSize int, jsonOutput bool) error {
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.svc.Feed(ctx, feed.FeedRequest{
		UserID:   userID,
		Strategy: strategy,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(result)
	}

	if result.Total == 0 {
		fmt.Println("no posts found (try loading data first: feedrank import <file>)")
		return nil
	}
	fmt.Fprintf(os.Stderr, "strategy %s, page %d, %s posts total\n",
		result.Strategy, result.Page, humanize.Comma(int64(result.Total)))
	if err := printRanked(result.Posts); err != nil {
		return err
	}
	for _, p := range result.Posts {
		if p.Explanation != "" {
			fmt.Printf("#%d: %s\n", p.ID, p.Explanation)
		}
	}
	return nil
}

func runTrends(ctx context.Context, detect bool, kind string, jsonOutput bool) error {
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	var records []trend.Record
	if detect {
		res, err := a.svc.DetectTrends(ctx)
		if err != nil {
			return err
		}
		records = res.Records
		for _, key := range res.Alerted {
			fmt.Fprintf(os.Stderr, "alerted: $%s\n", key)
		}
	} else {
		records, err = a.svc.Trending(ctx)
		if err != nil {
			return err
		}
	}

	if kind != "" {
		var filtered []trend.Record
		for _, r := range records {
			if string(r.Kind) == kind {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if jsonOutput {
		if records == nil {
			records = []trend.Record{}
		}
		return printJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("no trends in the current window")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tKEY\tPOSTS\tSENTIMENT")
	for _, r := range records {
		sentiment := "-"
		if r.Sentiment != nil {
			sentiment = fmt.Sprintf("%+.2f", *r.Sentiment)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Kind, r.Key, r.PostCount, sentiment)
	}
	return w.Flush()
}

func runMarket(ctx context.Context, refresh bool, limit int, jsonOutput bool) error {
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if refresh {
		fmt.Fprintln(os.Stderr, "fetching market data...")
		if _, err := a.svc.RefreshMarket(ctx); err != nil {
			return err
		}
	}

	trends, err := a.svc.MarketTrends(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(trends)
	}
	if len(trends) == 0 {
		fmt.Println("no market trends (try: feedrank market --refresh)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tTYPE\tMAGNITUDE\tDETECTED")
	for _, t := range trends {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", t.Ticker, t.Type, t.Magnitude, humanize.Time(t.DetectedAt))
	}
	return w.Flush()
}

func runReputation(ctx context.Context, args []string, reconcile, jsonOutput bool) error {
	if !reconcile && len(args) == 0 {
		return errors.New("give a user id or --reconcile")
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if reconcile {
		res, err := a.svc.Reconcile(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Fprintf(os.Stderr, "reconciled %d users, %d changed\n", res.Users, res.Changed)
		for _, name := range res.NewlyVerified {
			fmt.Printf("verified: %s\n", name)
		}
		if len(args) == 0 {
			return nil
		}
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	report, err := a.svc.Reputation(ctx, id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(report)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "user\t%s (#%d)\n", report.Username, report.UserID)
	fmt.Fprintf(w, "posts\t%d\n", report.Posts)
	fmt.Fprintf(w, "stored\t%.2f\n", report.Stored)
	fmt.Fprintf(w, "computed\t%.2f\n", report.Computed)
	fmt.Fprintf(w, "verified\t%t\n", report.IsVerified)
	return w.Flush()
}

func runImport(ctx context.Context, path string, reconcile bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	batch, err := feed.DecodeBatch(f)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.svc.Import(ctx, batch)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported %s users, %s posts, %s preference records\n",
		humanize.Comma(int64(stats.Users)), humanize.Comma(int64(stats.Posts)), humanize.Comma(int64(stats.Preferences)))

	if reconcile {
		res, err := a.svc.Reconcile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "reconciled %d users\n", res.Users)
	}
	return nil
}

func runServe(ctx context.Context, port int) error {
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	return newServer(a, port).ListenAndServe(ctx)
}

func runDaemon(ctx context.Context, port int) error {
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	jobs := scheduler.ServiceJobs(a.svc, a.cfg.Schedule, a.cfg.Market.Enabled)
	sched, err := scheduler.New(jobs, a.log)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return newServer(a, port).ListenAndServe(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintln(os.Stderr, "shut down")
	return nil
}

func newServer(a *app, port int) *server.Server {
	if port == 0 {
		port = a.cfg.Server.Port
	}
	return server.New(a.svc, a.metrics, a.log, server.Config{
		Port:         port,
		ReadTimeout:  a.cfg.Server.ParseReadTimeout(),
		WriteTimeout: a.cfg.Server.ParseWriteTimeout(),
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRanked(ranked []insight.RankedPost) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tID\tTICKER\tSECTOR\tQUALITY\tAGE")
	for _, p := range ranked {
		age := "unknown"
		if p.HasTimestamp() {
			age = humanize.Time(p.CreatedAt)
		}
		fmt.Fprintf(w, "%.2f\t%d\t%s\t%s\t%.0f\t%s\n",
			p.RankingScore, p.ID, dash(p.Ticker), dash(p.Sector), p.QualityScore, age)
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
