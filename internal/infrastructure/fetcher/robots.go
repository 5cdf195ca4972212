package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	robotsTxtPath      = "/robots.txt"
	maxRobotsBodyBytes = 512 * 1024
	defaultRobotsTTL   = 24 * time.Hour
)

// RobotsChecker caches robots.txt rules per host. Missing or broken robots.txt allows all.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration

	mu    sync.RWMutex
	cache map[string]robotsEntry
}

type robotsEntry struct {
	group     *robotstxt.Group
	fetchedAt time.Time
}

// NewRobotsChecker creates a checker; ttl <= 0 selects a one-day cache.
func NewRobotsChecker(client *http.Client, userAgent string, ttl time.Duration) *RobotsChecker {
	if ttl <= 0 {
		ttl = defaultRobotsTTL
	}
	return &RobotsChecker{client: client, userAgent: userAgent, ttl: ttl, cache: map[string]robotsEntry{}}
}

// Allowed reports whether rawURL may be fetched by the configured user agent.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in %q", rawURL)
	}

	entry, ok := r.cached(host)
	if !ok {
		entry = r.fetch(ctx, parsed.Scheme, host)
		r.mu.Lock()
		r.cache[host] = entry
		r.mu.Unlock()
	}
	if entry.group == nil {
		return true, nil
	}
	return entry.group.Test(parsed.EscapedPath()), nil
}

func (r *RobotsChecker) cached(host string) (robotsEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[host]
	if !ok || time.Since(entry.fetchedAt) > r.ttl {
		return robotsEntry{}, false
	}
	return entry, true
}

func (r *RobotsChecker) fetch(ctx context.Context, scheme, host string) robotsEntry {
	if scheme == "" {
		scheme = "https"
	}
	entry := robotsEntry{fetchedAt: time.Now()}

	resp, err := Get(ctx, r.client, scheme+"://"+host+robotsTxtPath, r.userAgent, maxRobotsBodyBytes)
	if err != nil {
		return entry
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		return entry
	}
	entry.group = data.FindGroup(r.userAgent)
	return entry
}
