package fetcher

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// robotsChecker fetches and caches per-host robots.txt disallow rules for
// the wildcard user agent. Failures to fetch robots.txt are treated as
// allow-all, matching common crawler behavior.
type robotsChecker struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	cache map[string][]string // host -> disallowed path prefixes
}

func newRobotsChecker(userAgent string, timeout time.Duration) *robotsChecker {
	return &robotsChecker{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		cache:     make(map[string][]string),
	}
}

// Allowed reports whether the target URL may be fetched.
func (r *robotsChecker) Allowed(ctx context.Context, target string) (bool, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	rules, err := r.rulesForHost(ctx, parsed)
	if err != nil {
		return true, nil
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	for _, prefix := range rules {
		if strings.HasPrefix(path, prefix) {
			return false, nil
		}
	}
	return true, nil
}

func (r *robotsChecker) rulesForHost(ctx context.Context, target *url.URL) ([]string, error) {
	host := target.Host

	r.mu.Lock()
	rules, ok := r.cache[host]
	r.mu.Unlock()
	if ok {
		return rules, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", target.Scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rules = nil
	} else {
		rules = parseDisallowRules(resp.Body)
	}

	r.mu.Lock()
	r.cache[host] = rules
	r.mu.Unlock()
	return rules, nil
}

// parseDisallowRules extracts Disallow prefixes from the wildcard user-agent
// group of a robots.txt body.
func parseDisallowRules(body interface{ Read([]byte) (int, error) }) []string {
	var rules []string
	inWildcardGroup := false

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			inWildcardGroup = value == "*"
		case "disallow":
			if inWildcardGroup && value != "" {
				rules = append(rules, value)
			}
		}
	}
	return rules
}
