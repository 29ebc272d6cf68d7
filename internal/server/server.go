// Package server — server.go: сборка роутера и жизненный цикл HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/jinjinsansan/tensei-sub001/internal/features/admin"
	"github.com/jinjinsansan/tensei-sub001/internal/features/award"
	"github.com/jinjinsansan/tensei-sub001/internal/features/gacha"
	"github.com/jinjinsansan/tensei-sub001/internal/features/tickets"
	"github.com/jinjinsansan/tensei-sub001/internal/features/users"
	"github.com/jinjinsansan/tensei-sub001/internal/jobs"
)

// Server — HTTP-поверхность сервиса.
type Server struct {
	httpServer    *http.Server
	gachaService  *gacha.Service
	awardService  *award.Service
	ticketService *tickets.Service
	adminService  *admin.Service
	userService   *users.Service
	scheduler     *jobs.Scheduler
}

// New собирает роутер и HTTP-сервер.
func New(
	port int,
	cronSecret string,
	appEnv string,
	gachaService *gacha.Service,
	awardService *award.Service,
	ticketService *tickets.Service,
	adminService *admin.Service,
	userService *users.Service,
	scheduler *jobs.Scheduler,
) *Server {
	if appEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		gachaService:  gachaService,
		awardService:  awardService,
		ticketService: ticketService,
		adminService:  adminService,
		userService:   userService,
		scheduler:     scheduler,
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	user := api.Group("/", userAuth(userService))
	{
		user.POST("/gacha/play", s.handlePlay)
		user.GET("/gacha/pending", s.handleListPending)
		user.POST("/gacha/claim/:drawID", s.handleClaim)
		user.GET("/tickets/balance", s.handleBalance)
	}

	api.POST("/cron/sweep", cronAuth(cronSecret), s.handleSweep)

	api.POST("/admin/login", s.handleAdminLogin)
	adminGroup := api.Group("/admin", adminAuth(adminService))
	{
		adminGroup.POST("/logout", s.handleAdminLogout)
		adminGroup.POST("/draws/:drawID/settle", s.handleAdminForceSettle)
		adminGroup.POST("/users/:userID/settle", s.handleAdminBulkSettle)
		adminGroup.POST("/users/:userID/cancel", s.handleAdminCancelPending)
		adminGroup.POST("/gacha/test-play", s.handleAdminTestPlay)
		adminGroup.GET("/pending-summary", s.handleAdminPendingSummary)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Run запускает HTTP-сервер (блокирующий вызов).
func (s *Server) Run() error {
	log.WithField("addr", s.httpServer.Addr).Info("HTTP-сервер запущен")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
