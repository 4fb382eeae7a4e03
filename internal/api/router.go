package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/registry"
	"github.com/fengzhi/newshub/internal/storage"
	"github.com/gin-gonic/gin"
)

type Server struct {
	reg   *registry.Registry
	store *storage.Store
}

func NewServer(reg *registry.Registry, store *storage.Store) *Server {
	return &Server{reg: reg, store: store}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sources", s.listSources)
		v1.GET("/news/:source", s.getNews)
		v1.GET("/sections", s.listSections)
		v1.GET("/archive", s.listArchive)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.reg.IDs()})
}

// parsePolicy 从查询参数构造抓取策略，范围校验交给 Policy.Validate
func parsePolicy(c *gin.Context) (crawl.Policy, error) {
	p := crawl.DefaultPolicy
	var err error
	if v := c.Query("max_pages"); v != "" {
		if p.MaxPages, err = strconv.Atoi(v); err != nil {
			return p, &crawl.PolicyError{Field: "max_pages", Msg: "must be an integer"}
		}
	}
	if v := c.Query("max_items"); v != "" {
		if p.MaxItems, err = strconv.Atoi(v); err != nil {
			return p, &crawl.PolicyError{Field: "max_items", Msg: "must be an integer"}
		}
	}
	if v := c.Query("since_days"); v != "" {
		if p.SinceDays, err = strconv.Atoi(v); err != nil {
			return p, &crawl.PolicyError{Field: "since_days", Msg: "must be an integer"}
		}
	}
	if v := c.Query("include_subtabs"); v != "" {
		p.IncludeSubtabs = v == "true" || v == "1"
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// getNews 运行一次抓取并返回统一响应。任何失败都是结构化三态，
// 不向调用方抛原始错误。
func (s *Server) getNews(c *gin.Context) {
	sourceID := c.Param("source")
	runner := s.reg.Get(sourceID)
	if runner == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "unknown_source",
			"message": "unknown source: " + sourceID,
		})
		return
	}

	policy, err := parsePolicy(c)
	if err != nil {
		bad := crawl.Classify(nil, err).Response()
		c.JSON(http.StatusBadRequest, bad)
		return
	}

	cacheKey := fmt.Sprintf("news:%s:%d:%d:%d:%t",
		sourceID, policy.MaxPages, policy.MaxItems, policy.SinceDays, policy.IncludeSubtabs)
	if s.store != nil {
		if cached, ok := s.store.CachedResponse(c.Request.Context(), cacheKey); ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	outcome := runner.Run(c.Request.Context(), policy)
	resp := outcome.Response()

	status := http.StatusOK
	if outcome.Status == crawl.StatusError {
		status = http.StatusInternalServerError
	} else if s.store != nil {
		s.store.CacheResponse(c.Request.Context(), cacheKey, &resp)
	}
	c.JSON(status, resp)
}

// listSections 返回中钢协的两级栏目拓扑与基线对账结果
func (s *Server) listSections(c *gin.Context) {
	include := true
	if v := c.Query("include_subtabs"); v != "" {
		include = v == "true" || v == "1"
	}
	topo, err := s.reg.Discoverer.Discover(c.Request.Context(), include)
	if err != nil {
		resp := crawl.Classify(nil, err).Response()
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, topo)
}

// listArchive 浏览已入库的历史条目
func (s *Server) listArchive(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "no_storage", "message": "storage not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := s.store.ListNews(c.Query("source"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal_error", "message": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "ok", "data": list})
}
