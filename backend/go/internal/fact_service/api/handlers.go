package api

import (
	"FactVerse/backend/go/internal/fact_service/service"
	"FactVerse/backend/go/internal/fact_service/store"
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/logger"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// BackendHeader names the backend that produced a generated fact.
const BackendHeader = "X-Fact-Backend"

// API 提供事实服务的 HTTP 处理函数。
type API struct {
	service     *service.FactService
	logger      *logger.Logger
	environment string
	startedAt   time.Time
}

// NewAPI 创建一个新的 API 处理器。
func NewAPI(svc *service.FactService, environment string, log *logger.Logger) *API {
	return &API{
		service:     svc,
		logger:      log,
		environment: environment,
		startedAt:   time.Now(),
	}
}

type generateRequest struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Complexity string `json:"complexity"`
	Count      *int   `json:"count"`
}

// bindOptionalJSON 解析请求体，空请求体视为使用默认值。
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "message": err.Error()})
		return false
	}
	return true
}

func (r generateRequest) difficulty() string {
	if r.Difficulty != "" {
		return r.Difficulty
	}
	return r.Complexity
}

func (r generateRequest) count(fallback int) int {
	if r.Count == nil {
		return fallback
	}
	return *r.Count
}

// GenerateFact 生成单条事实。生成本身不会失败，因此总是返回 200。
func (a *API) GenerateFact(c *gin.Context) {
	var req generateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res := a.service.Generate(c.Request.Context(), req.Category, req.difficulty(), req.count(1))
	c.Header(BackendHeader, res.Backend)
	c.JSON(http.StatusOK, res.Fact)
}

// GenerateBatch 批量生成事实，count 默认为 25。
func (a *API) GenerateBatch(c *gin.Context) {
	var req generateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	out, err := a.service.GenerateBatch(c.Request.Context(), req.Category, req.difficulty(), req.count(25))
	if err != nil {
		a.writeError(c, err, "Failed to generate facts batch")
		return
	}

	meta := gin.H{"requested": out.Requested, "generated": out.Generated}
	if len(out.Errors) > 0 {
		meta["errors"] = out.Errors
	}
	c.JSON(http.StatusOK, gin.H{"facts": out.Facts, "metadata": meta})
}

// Analyze 对文本执行启发式分析。
func (a *API) Analyze(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, a.service.Analyze(req.Text))
}

// RandomFact 返回一条随机事实，数据库为空时即时生成。
func (a *API) RandomFact(c *gin.Context) {
	fact, err := a.service.Random(c.Request.Context(), c.Query("category"))
	if err != nil {
		a.writeError(c, err, "Failed to get random fact")
		return
	}
	c.JSON(http.StatusOK, fact)
}

// FactsByCategory 分页返回某个分类的事实。
func (a *API) FactsByCategory(c *gin.Context) {
	page, limit := pageParams(c)
	out, err := a.service.ByCategory(c.Request.Context(), c.Param("category"), page, limit)
	if err != nil {
		a.writeError(c, err, "Failed to get category facts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"facts": out.Facts, "pagination": out.Pagination})
}

// SearchFacts 按关键词搜索事实。
func (a *API) SearchFacts(c *gin.Context) {
	page, limit := pageParams(c)
	query := c.Query("q")
	out, err := a.service.Search(c.Request.Context(), query, c.Query("category"), c.Query("difficulty"), page, limit)
	if err != nil {
		a.writeError(c, err, "Failed to search facts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"facts": out.Facts, "pagination": out.Pagination, "query": query})
}

// TrendingFacts 返回点赞最多的事实。
func (a *API) TrendingFacts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	facts, err := a.service.Trending(c.Request.Context(), limit)
	if err != nil {
		a.writeError(c, err, "Failed to get trending facts")
		return
	}
	c.JSON(http.StatusOK, facts)
}

// Stats 返回事实统计信息。
func (a *API) Stats(c *gin.Context) {
	stats, err := a.service.Stats(c.Request.Context())
	if err != nil {
		a.writeError(c, err, "Failed to get fact statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CategoryStats 返回每个分类的聚合统计。
func (a *API) CategoryStats(c *gin.Context) {
	stats, err := a.service.CategoryStats(c.Request.Context())
	if err != nil {
		a.writeError(c, err, "Failed to get category statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SavedFacts 返回已收藏的事实。
func (a *API) SavedFacts(c *gin.Context) {
	facts, err := a.service.Saved(c.Request.Context())
	if err != nil {
		a.writeError(c, err, "Failed to get saved facts")
		return
	}
	c.JSON(http.StatusOK, facts)
}

// GetFact 通过 ID 获取事实。
func (a *API) GetFact(c *gin.Context) {
	fact, err := a.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err, "Failed to get fact")
		return
	}
	c.JSON(http.StatusOK, fact)
}

// LikeFact 为事实点赞。
func (a *API) LikeFact(c *gin.Context) {
	likes, err := a.service.Like(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err, "Failed to like fact")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fact liked successfully", "likes": likes})
}

// ReportFact 举报事实，reason 为必填项。
func (a *API) ReportFact(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}
	if err := a.service.Report(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		a.writeError(c, err, "Failed to report fact")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fact reported successfully"})
}

// SaveFact 收藏事实。
func (a *API) SaveFact(c *gin.Context) {
	if err := a.service.Save(c.Request.Context(), c.Param("id")); err != nil {
		a.writeError(c, err, "Failed to save fact")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fact saved successfully"})
}

// UnsaveFact 取消收藏。
func (a *API) UnsaveFact(c *gin.Context) {
	if err := a.service.Unsave(c.Request.Context(), c.Param("id")); err != nil {
		a.writeError(c, err, "Failed to remove saved fact")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fact removed from saved successfully"})
}

// Health 返回服务状态。
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":      time.Since(a.startedAt).Seconds(),
		"environment": a.environment,
	})
}

// NotFound 处理未注册的路由。
func (a *API) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "Route not found",
		"message": "The requested route " + c.Request.URL.Path + " does not exist",
	})
}

// writeError 将服务层错误映射为 HTTP 状态码。
func (a *API) writeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, store.ErrFactNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Fact not found"})
	case service.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		a.logger.WithError(models.ErrorInfoFrom(err, "handler_error")).
			WithPayload(map[string]interface{}{"path": c.FullPath()}).
			Error(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message, "message": err.Error()})
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	return page, limit
}
