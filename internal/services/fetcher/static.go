package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// StaticFetcher implements interfaces.ContentFetcher with a plain HTTP GET.
// Suitable for pages that need no JavaScript; the chromedp fetcher covers
// the rest.
type StaticFetcher struct {
	config  *common.FetcherConfig
	client  *http.Client
	limiter *hostLimiter
	robots  *robotsChecker
	logger  arbor.ILogger
}

func NewStaticFetcher(config *common.FetcherConfig, logger arbor.ILogger) *StaticFetcher {
	f := &StaticFetcher{
		config: config,
		client: &http.Client{
			Timeout: config.RequestTimeoutDuration(),
		},
		limiter: newHostLimiter(config.RequestDelayDuration()),
		logger:  logger,
	}
	if config.FollowRobotsTxt {
		f.robots = newRobotsChecker(config.UserAgent, config.RequestTimeoutDuration())
	}
	return f
}

func (f *StaticFetcher) Fetch(ctx context.Context, target string) (*interfaces.FetchResult, error) {
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

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("request to %s: %w", target, interfaces.ErrFetchTimeout)
		}
		return nil, fmt.Errorf("request to %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s returned %d: %w", target, resp.StatusCode, interfaces.ErrFetchBlocked)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%s returned %d: %w", target, resp.StatusCode, interfaces.ErrFetchTimeout)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s returned status %d", target, resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if f.config.MaxBodySize > 0 {
		reader = io.LimitReader(resp.Body, int64(f.config.MaxBodySize))
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	cleanedText, lang := ExtractText(string(body))
	f.logger.Debug().
		Str("url", target).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Str("language", lang).
		Msg("Static fetch complete")

	return &interfaces.FetchResult{
		RawContent:       body,
		CleanedText:      cleanedText,
		DetectedLanguage: lang,
	}, nil
}
