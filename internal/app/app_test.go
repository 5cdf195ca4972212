package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LandingArticles/internal/clock"
	"LandingArticles/internal/config"
	"LandingArticles/internal/domain"
	"LandingArticles/internal/logging"
)

const adminToken = "letmein"

var today = time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)

var storyParagraphs = []string{
	"The harbour authority confirmed on Tuesday that the northern pier will reopen after a two-year restoration, bringing back ferry routes that islanders had relied on for decades.",
	"Engineers replaced more than four hundred timber piles, reinforced the deck with recycled steel, and installed lighting designed to protect nesting seabirds along the breakwater.",
	"Local businesses expect the first summer season to draw visitors back to the waterfront, although some residents worry about parking and the rising cost of moorings.",
	"The ferry operator said timetables would be published next month, with early crossings on weekdays and an extra evening sailing during the festival fortnight in August.",
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		var items strings.Builder
		for i, day := range []string{"01", "02", "03"} {
			fmt.Fprintf(&items, `<item>
  <title>Story %d</title>
  <link>%s/story/%d?utm_source=rss</link>
  <guid>story-%d</guid>
  <pubDate>%s May 2024 06:00:00 GMT</pubDate>
  <description>Short teaser.</description>
</item>`, i+1, srv.URL, i+1, i+1, day)
		}
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Harbour</title>%s</channel></rss>`, items.String())
	})
	mux.HandleFunc("/story/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		var body strings.Builder
		for _, p := range storyParagraphs {
			body.WriteString("<p>" + p + "</p>")
		}
		fmt.Fprintf(w, `<html><head><title>%s</title></head><body>
<nav><a href="/">Home</a><a href="/news">News</a></nav>
<article><h1>Harbour news</h1>%s</article>
<footer>Privacy</footer></body></html>`, r.URL.Path, body.String())
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "landing.db")
	cfg.Scheduler.Enabled = false
	cfg.HTTP.AdminToken = adminToken
	cfg.Fetch.HostInterval = 0
	cfg.Ingest.MinWords = 50
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, opts ...Option) *Application {
	t.Helper()
	opts = append([]Option{WithClock(clock.Fixed(today))}, opts...)
	a, err := New(context.Background(), cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(adminTokenHeaderForTest, adminToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec.Code, payload
}

const adminTokenHeaderForTest = "X-Admin-Token"

func TestEndToEndBackfillAndRead(t *testing.T) {
	t.Parallel()
	site := newSiteServer(t)
	a := newTestApp(t, testConfig(t))
	h := a.Handler()

	code, feed := call(t, h, http.MethodPost, "/v1/admin/feeds", fmt.Sprintf(`{"url":%q,"name":"Harbour"}`, site.URL+"/feed.xml"))
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Harbour", feed["name"])

	code, backfill := call(t, h, http.MethodPost, "/v1/admin/fetch?days=3", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, backfill["committed"])

	code, list := call(t, h, http.MethodGet, "/v1/articles?limit=10", "")
	require.Equal(t, http.StatusOK, code)
	items := list["items"].([]any)
	require.Len(t, items, 3)
	for i, want := range []string{"2024-05-03", "2024-05-02", "2024-05-01"} {
		item := items[i].(map[string]any)
		assert.Equal(t, want, item["slot_date"])
		assert.Equal(t, fmt.Sprintf("Story %d", 3-i), item["title"])
	}

	code, latest := call(t, h, http.MethodGet, "/v1/articles/latest", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, site.URL+"/story/3?utm_source=rss", latest["source_url"])
	assert.NotEqual(t, "direct", latest["extraction_stage"])
	body := latest["body"].(string)
	assert.True(t, strings.HasPrefix(body, "# Story 3\n\n"))
	assert.Contains(t, body, "nesting seabirds")
	assert.NotContains(t, body, "Privacy")
	assert.True(t, strings.HasSuffix(body, "Source: "+site.URL+"/story/3?utm_source=rss\n"))

	code, again := call(t, h, http.MethodPost, "/v1/admin/fetch/today", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(domain.OutcomeAlreadyFilled), again["outcome"])

	code, feeds := call(t, h, http.MethodGet, "/v1/admin/feeds", "")
	require.Equal(t, http.StatusOK, code)
	first := feeds["feeds"].([]any)[0].(map[string]any)
	assert.Equal(t, "story-3", first["last_seen_item_id"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `landing_articles_slot_runs_total{outcome="committed",trigger="admin"} 3`)

	code, health := call(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, health["ok"])
}

func TestScheduledTickNotifiesTelegram(t *testing.T) {
	t.Parallel()
	site := newSiteServer(t)

	var (
		mu       sync.Mutex
		messages []string
		paths    []string
	)
	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		messages = append(messages, r.PostForm.Get("text"))
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(tg.Close)

	cfg := testConfig(t)
	cfg.Notifications.Telegram = config.TelegramConfig{BotToken: "bot-token", ChatID: "7"}
	a := newTestApp(t, cfg, WithTelegramBaseURL(tg.URL))

	_, err := a.Feeds().Register(context.Background(), site.URL+"/feed.xml", "")
	require.NoError(t, err)

	report := a.scheduler.Tick(context.Background())
	require.Equal(t, domain.OutcomeCommitted, report.Outcome)
	assert.Equal(t, domain.SlotDate("2024-05-03"), report.Slot)
	assert.Equal(t, "schedule", report.Trigger)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, messages, 1)
	assert.Equal(t, []string{"/botbot-token/sendMessage"}, paths)
	assert.True(t, strings.HasPrefix(messages[0], "2024-05-03: committed"))
	assert.Contains(t, messages[0], "Story 1")
}

func TestNewRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Scheduler.CronExpression = "every day"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewLogsChainAndExposesNextRun(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg := testConfig(t)
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.FireAt = "02:00"

	a, err := New(context.Background(), cfg, logging.NewWithWriter(&buf, "info", "text"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Contains(t, buf.String(), "extraction chain ready")
	assert.Contains(t, buf.String(), "direct density readability")
	assert.True(t, a.NextRun().IsZero(), "not started yet")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, a.scheduler.Start(ctx))
	t.Cleanup(func() { _ = a.scheduler.Stop(context.Background()) })

	next := a.NextRun()
	require.False(t, next.IsZero())
	assert.Equal(t, time.UTC, next.Location())
	assert.Equal(t, 2, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestCronSpec(t *testing.T) {
	t.Parallel()

	spec, err := CronSpec(config.SchedulerConfig{FireAt: "02:00"})
	require.NoError(t, err)
	assert.Equal(t, "0 2 * * *", spec)

	spec, err = CronSpec(config.SchedulerConfig{FireAt: "02:00", CronExpression: "30 6 * * 1-5"})
	require.NoError(t, err)
	assert.Equal(t, "30 6 * * 1-5", spec)
}
