package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/usecase"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

type handler struct {
	deps   Deps
	logger *slog.Logger
}

func (h *handler) health(c *gin.Context) {
	if h.deps.Health != nil {
		if err := h.deps.Health.Ping(c.Request.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "store unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) listArticles(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		badRequest(c, "limit must be between 1 and 50")
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		badRequest(c, "offset must not be negative")
		return
	}

	articles, err := h.deps.Articles.ListArticles(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]articleSummary, 0, len(articles))
	for _, a := range articles {
		items = append(items, summarize(a, h.deps.PreviewWords))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *handler) latestArticle(c *gin.Context) {
	article, err := h.deps.Articles.LatestArticle(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeArticle(c, article)
}

func (h *handler) articleBySlot(c *gin.Context) {
	slot, err := domain.ParseSlotDate(c.Param("date"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	article, err := h.deps.Articles.ArticleBySlot(c.Request.Context(), slot)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeArticle(c, article)
}

func (h *handler) articleByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	article, err := h.deps.Articles.ArticleByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeArticle(c, article)
}

func (h *handler) writeArticle(c *gin.Context, article domain.Article) {
	maxWords, err := queryInt(c, "max_words", 0)
	if err != nil || maxWords < 0 {
		badRequest(c, "max_words must be a positive number")
		return
	}
	c.JSON(http.StatusOK, viewArticle(article, maxWords))
}

type createFeedRequest struct {
	URL  string `json:"url" binding:"required"`
	Name string `json:"name"`
}

type updateFeedRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

func (h *handler) listFeeds(c *gin.Context) {
	feeds, err := h.deps.Feeds.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]feedView, 0, len(feeds))
	for _, f := range feeds {
		items = append(items, viewFeed(f))
	}
	c.JSON(http.StatusOK, gin.H{"feeds": items, "count": len(items)})
}

func (h *handler) createFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	feed, err := h.deps.Feeds.Register(c.Request.Context(), req.URL, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewFeed(feed))
}

func (h *handler) updateFeed(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	feed, err := h.deps.Feeds.Update(c.Request.Context(), id, domain.FeedUpdate{Name: req.Name, Active: req.Active})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewFeed(feed))
}

func (h *handler) deleteFeed(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	deactivated, err := h.deps.Feeds.Remove(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deactivated": deactivated})
}

func (h *handler) fetchToday(c *gin.Context) {
	report := h.deps.Runner.FillToday(c.Request.Context(), usecase.TriggerAdmin)
	status := http.StatusOK
	if report.Outcome == domain.OutcomeStoreUnavailable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (h *handler) backfill(c *gin.Context) {
	days, err := queryInt(c, "days", 1)
	if err != nil {
		badRequest(c, "days must be a number")
		return
	}

	var reports []domain.RunReport
	if raw := c.Query("end_date"); raw != "" {
		end, perr := domain.ParseSlotDate(raw)
		if perr != nil {
			badRequest(c, perr.Error())
			return
		}
		reports, err = h.deps.Runner.BackfillEnding(c.Request.Context(), usecase.TriggerAdmin, end, days)
	} else {
		reports, err = h.deps.Runner.Backfill(c.Request.Context(), usecase.TriggerAdmin, days)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	committed := 0
	for _, r := range reports {
		if r.Outcome == domain.OutcomeCommitted {
			committed++
		}
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "committed": committed, "reports": reports})
}

// fail maps domain errors onto HTTP statuses.
func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidFeed), errors.Is(err, domain.ErrInvalidDays):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFeedExists), errors.Is(err, domain.ErrBackfillRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
