package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/youthdesk/policy-rag/internal/bootstrap"
	"github.com/youthdesk/policy-rag/internal/config"
	"github.com/youthdesk/policy-rag/internal/observability/logging"
)

type category struct {
	name string
	code string
}

func main() {
	replay := flag.String("replay", "", "comma-separated policy ids to restore from snapshots instead of crawling")
	flag.Parse()

	cfg := config.Load()
	logger := logging.Setup("crawler", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if *replay != "" {
		replayFailed := 0
		for _, id := range strings.Split(*replay, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if err := app.IngestUC.ReplaySnapshot(ctx, id); err != nil {
				logger.Error("replay snapshot failed", "policy_id", id, "error", err)
				replayFailed++
				continue
			}
			logger.Info("policy replayed", "policy_id", id)
		}
		if replayFailed > 0 {
			log.Fatalf("replay finished with %d failures", replayFailed)
		}
		return
	}

	categories := parseCategories(cfg.CrawlerCategories)
	if len(categories) == 0 {
		log.Fatalf("no categories configured: %q", cfg.CrawlerCategories)
	}

	collected, failed := 0, 0
	for _, cat := range categories {
		if ctx.Err() != nil {
			break
		}
		c, f := crawlCategory(ctx, app, cat, cfg.CrawlerMaxPages, logger)
		collected += c
		failed += f
	}

	logger.Info("crawl finished", "collected", collected, "failed", failed)
	if ctx.Err() != nil {
		logger.Warn("crawl interrupted", "reason", ctx.Err())
	}
}

func crawlCategory(ctx context.Context, app *bootstrap.App, cat category, maxPages int, logger *slog.Logger) (collected, failed int) {
	logger.Info("crawling category", "category", cat.name, "code", cat.code)

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return collected, failed
		}

		ids, err := app.Crawler.ListPolicyIDs(ctx, cat.code, page)
		if err != nil {
			logger.Error("list page failed", "category", cat.name, "page", page, "error", err)
			failed++
			return collected, failed
		}
		// An empty page means the category listing is exhausted.
		if len(ids) == 0 {
			return collected, failed
		}

		for _, id := range ids {
			if ctx.Err() != nil {
				return collected, failed
			}
			rec, err := app.Crawler.FetchPolicy(ctx, id, cat.name)
			if err != nil {
				logger.Error("fetch policy failed", "policy_id", id, "error", err)
				failed++
				continue
			}
			if err := app.IngestUC.Ingest(ctx, rec); err != nil {
				logger.Error("ingest policy failed", "policy_id", id, "error", err)
				failed++
				continue
			}
			collected++
		}
	}
	return collected, failed
}

// parseCategories reads "name:code,name:code" pairs; malformed entries are
// dropped.
func parseCategories(raw string) []category {
	var out []category
	for _, pair := range strings.Split(raw, ",") {
		name, code, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" || code == "" {
			continue
		}
		out = append(out, category{name: name, code: code})
	}
	return out
}
