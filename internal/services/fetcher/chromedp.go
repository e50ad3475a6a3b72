// Package fetcher provides the scrape stage's content fetchers: a headless
// Chrome renderer for JavaScript-heavy pages and a static HTTP fetcher for
// the rest, selected via configuration.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// ChromeFetcher implements interfaces.ContentFetcher by rendering pages in
// headless Chrome. One shared allocator; each fetch gets its own browser
// tab context bounded by the request timeout.
type ChromeFetcher struct {
	config          *common.FetcherConfig
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	limiter         *hostLimiter
	robots          *robotsChecker
	logger          arbor.ILogger
}

// NewChromeFetcher creates the fetcher and its Chrome allocator. Call Close
// to release the browser.
func NewChromeFetcher(config *common.FetcherConfig, logger arbor.ILogger) *ChromeFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	f := &ChromeFetcher{
		config:          config,
		allocatorCtx:    allocatorCtx,
		allocatorCancel: allocatorCancel,
		limiter:         newHostLimiter(config.RequestDelayDuration()),
		logger:          logger,
	}
	if config.FollowRobotsTxt {
		f.robots = newRobotsChecker(config.UserAgent, config.RequestTimeoutDuration())
	}
	return f
}

func (f *ChromeFetcher) Fetch(ctx context.Context, target string) (*interfaces.FetchResult, error) {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", target)
	}

	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, target)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s disallowed by robots.txt: %w", target, interfaces.ErrFetchBlocked)
		}
	}

	if err := f.limiter.Wait(ctx, parsed.Host); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(f.allocatorCtx)
	defer tabCancel()

	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, f.config.RequestTimeoutDuration())
	defer timeoutCancel()

	// Propagate caller cancellation into the browser context
	stop := context.AfterFunc(ctx, timeoutCancel)
	defer stop()

	start := time.Now()
	var html string
	err = chromedp.Run(timeoutCtx,
		network.Enable(),
		chromedp.Navigate(target),
		chromedp.Sleep(f.config.RenderWaitTimeDuration()),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("rendering %s: %w", target, interfaces.ErrFetchTimeout)
		}
		return nil, fmt.Errorf("failed to render %s: %w", target, err)
	}

	cleanedText, lang := ExtractText(html)
	f.logger.Debug().
		Str("url", target).
		Dur("render_time", time.Since(start)).
		Int("bytes", len(html)).
		Str("language", lang).
		Msg("Chrome fetch complete")

	return &interfaces.FetchResult{
		RawContent:       []byte(html),
		CleanedText:      cleanedText,
		DetectedLanguage: lang,
	}, nil
}

// Close shuts down the Chrome allocator.
func (f *ChromeFetcher) Close() {
	f.allocatorCancel()
}

// NewFetcher selects the fetcher implementation from configuration.
func NewFetcher(config *common.FetcherConfig, logger arbor.ILogger) (interfaces.ContentFetcher, error) {
	switch config.Mode {
	case "", "chromedp":
		return NewChromeFetcher(config, logger), nil
	case "static":
		return NewStaticFetcher(config, logger), nil
	default:
		return nil, fmt.Errorf("unknown fetcher mode: %s", config.Mode)
	}
}
