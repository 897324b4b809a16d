package api

import (
	"FactVerse/backend/go/internal/config"
	"FactVerse/backend/go/pkg/httpmiddleware"
	"FactVerse/backend/go/pkg/logger"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig 汇总路由所需的外部依赖。
type RouterConfig struct {
	ClientURL string
	RateLimit config.RateLimiterConfig
	// Metrics 为 nil 时不注册 /metrics。
	Metrics interface {
		Middleware() gin.HandlerFunc
		Handler() http.Handler
	}
	// WebSocket 为 nil 时不注册 /ws。
	WebSocket http.HandlerFunc
}

// SetupRouter 配置和返回一个 Gin 引擎实例。
func SetupRouter(api *API, cfg RouterConfig, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(httpmiddleware.Recovery(log), httpmiddleware.RequestLogger(log))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.ClientURL},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{BackendHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", api.Health)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	if cfg.WebSocket != nil {
		r.GET("/ws", gin.WrapF(cfg.WebSocket))
	}

	apiGroup := r.Group("/api")
	generateLimit := func(c *gin.Context) { c.Next() }
	if rl := cfg.RateLimit; rl.Enabled {
		apiGroup.Use(httpmiddleware.RateLimit(
			httpmiddleware.FixedWindow(rl.API.Limit, config.MustDuration(rl.API.Window, 15*time.Minute)),
			"API limit exceeded. Please try again later.",
		))
		// 两个生成接口共享同一组计数器。
		generateLimit = httpmiddleware.RateLimit(
			httpmiddleware.FixedWindow(rl.Generate.Limit, config.MustDuration(rl.Generate.Window, time.Minute)),
			"Too many fact generation requests, please try again later.",
		)
	}

	facts := apiGroup.Group("/facts")
	{
		facts.POST("/generate", generateLimit, api.GenerateFact)
		facts.POST("/generate/batch", generateLimit, api.GenerateBatch)

		facts.GET("/random", api.RandomFact)
		facts.GET("/category/:category", api.FactsByCategory)
		facts.GET("/search", api.SearchFacts)
		facts.GET("/trending", api.TrendingFacts)
		facts.GET("/stats", api.Stats)
		facts.GET("/stats/categories", api.CategoryStats)
		facts.GET("/saved", api.SavedFacts)

		facts.GET("/:id", api.GetFact)
		facts.POST("/:id/like", api.LikeFact)
		facts.POST("/:id/report", api.ReportFact)
		facts.POST("/:id/save", api.SaveFact)
		facts.DELETE("/:id/save", api.UnsaveFact)
	}

	ai := apiGroup.Group("/ai")
	{
		ai.POST("/analyze", api.Analyze)
	}

	r.NoRoute(api.NotFound)
	return r
}
