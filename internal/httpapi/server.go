package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"greenpulse/internal/greenpulse/service"
	"greenpulse/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server 对外只读查询与捐赠提交的 HTTP 入口
type Server struct {
	impact    service.ImpactService
	donations service.DonationService
	gatherer  prometheus.Gatherer
	engine    *gin.Engine
	http      *http.Server
}

// Config HTTP 服务配置
type Config struct {
	Addr     string
	Gatherer prometheus.Gatherer // 为 nil 时不暴露 /metrics
}

// New 创建服务并注册路由
func New(cfg Config, impact service.ImpactService, donations service.DonationService) *Server {
	s := &Server{
		impact:    impact,
		donations: donations,
		gatherer:  cfg.Gatherer,
	}
	s.engine = s.routes()
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler 供测试直接驱动
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), errorHandler())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	{
		users := v1.Group("/users/:userID")
		users.GET("/dashboard", s.GetDashboard)
		users.GET("/ledger", s.GetLedger)
		users.GET("/coverage", s.GetCoverage)

		v1.GET("/community-goal", s.GetCommunityGoal)
		v1.POST("/donations", s.PostDonation)
	}
	return r
}

// Start 阻塞运行直到 ctx 取消
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.L().Infof("HTTP API listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown 优雅关闭
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.L().WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}
