package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

const (
	defaultPreviewWords = 200
	adminTokenHeader    = "X-Admin-Token"
)

// FeedAdmin is the feed registry surface exposed to operators.
type FeedAdmin interface {
	Register(ctx context.Context, rawURL, name string) (domain.Feed, error)
	List(ctx context.Context) ([]domain.Feed, error)
	Get(ctx context.Context, id int64) (domain.Feed, error)
	Update(ctx context.Context, id int64, update domain.FeedUpdate) (domain.Feed, error)
	Remove(ctx context.Context, id int64) (bool, error)
}

// Runner triggers ingestion on demand.
type Runner interface {
	FillToday(ctx context.Context, trigger string) domain.RunReport
	Backfill(ctx context.Context, trigger string, days int) ([]domain.RunReport, error)
	BackfillEnding(ctx context.Context, trigger string, end domain.SlotDate, days int) ([]domain.RunReport, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps lists the collaborators the router dispatches to. Metrics and Health are optional.
type Deps struct {
	Articles     ports.ArticleReader
	Feeds        FeedAdmin
	Runner       Runner
	Health       Pinger
	Metrics      http.Handler
	AdminToken   string
	PreviewWords int
	Logger       *slog.Logger
}

// NewRouter builds the gin engine serving the read and admin APIs.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.PreviewWords <= 0 {
		deps.PreviewWords = defaultPreviewWords
	}

	router := gin.New()
	router.Use(requestLogger(deps.Logger))
	router.Use(gin.Recovery())

	h := &handler{deps: deps, logger: deps.Logger}

	router.GET("/health", h.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/v1")

	articles := v1.Group("/articles")
	articles.GET("", h.listArticles)
	articles.GET("/latest", h.latestArticle)
	articles.GET("/slot/:date", h.articleBySlot)
	articles.GET("/:id", h.articleByID)

	admin := v1.Group("/admin", adminAuth(deps.AdminToken))
	admin.GET("/feeds", h.listFeeds)
	admin.POST("/feeds", h.createFeed)
	admin.PATCH("/feeds/:id", h.updateFeed)
	admin.DELETE("/feeds/:id", h.deleteFeed)
	admin.POST("/fetch/today", h.fetchToday)
	admin.POST("/fetch", h.backfill)

	return router
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Debug("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
