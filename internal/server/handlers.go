// Package server — handlers.go: тонкие обработчики маршрутов.
// Вся логика живёт в сервисах; здесь только разбор входа, вызов
// и перевод доменных ошибок в HTTP-коды.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
	"github.com/jinjinsansan/tensei-sub001/internal/features/gacha"
	"github.com/jinjinsansan/tensei-sub001/internal/features/tickets"
)

type playRequest struct {
	DrawCount  int    `json:"drawCount"`
	ConfigSlug string `json:"configSlug"`
}

// handlePlay — POST /api/gacha/play: одна сессия крутки.
func (s *Server) handlePlay(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}
	if req.DrawCount == 0 {
		req.DrawCount = 1
	}

	resp, err := s.gachaService.Play(
		c.Request.Context(),
		c.GetString(ctxUserID),
		c.GetString(ctxSession),
		gacha.PlayOptions{DrawCount: req.DrawCount, ConfigSlug: req.ConfigSlug},
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleListPending — GET /api/gacha/pending: незавершённые крутки игрока.
func (s *Server) handleListPending(c *gin.Context) {
	records, err := s.gachaService.ListPending(c.Request.Context(), c.GetString(ctxUserID), 50)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": records})
}

// handleClaim — POST /api/gacha/claim/:drawID: клиент забирает награду.
// Повторный клейм возвращает тот же результат без второй записи.
func (s *Server) handleClaim(c *gin.Context) {
	drawID := c.Param("drawID")
	draw, err := s.gachaService.GetDraw(c.Request.Context(), drawID)
	if err != nil {
		respondError(c, err)
		return
	}
	// Чужую крутку клеймить нельзя
	if draw.UserID != c.GetString(ctxUserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "крутка не найдена"})
		return
	}

	outcome, err := s.awardService.Settle(c.Request.Context(), drawID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// handleBalance — GET /api/tickets/balance.
func (s *Server) handleBalance(c *gin.Context) {
	balance, err := s.ticketService.GetBalance(c.Request.Context(), c.GetString(ctxUserID), tickets.TypeBasic)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// handleSweep — POST /api/cron/sweep: внешний триггер добора.
func (s *Server) handleSweep(c *gin.Context) {
	report, err := s.scheduler.RunSweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type loginRequest struct {
	Operator string `json:"operator" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleAdminLogin — POST /api/admin/login.
func (s *Server) handleAdminLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}
	token, err := s.adminService.Login(c.Request.Context(), req.Operator, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// handleAdminLogout — POST /api/admin/logout.
func (s *Server) handleAdminLogout(c *gin.Context) {
	if err := s.adminService.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleAdminForceSettle — POST /api/admin/draws/:drawID/settle.
func (s *Server) handleAdminForceSettle(c *gin.Context) {
	outcome, err := s.adminService.ForceSettle(c.Request.Context(), c.GetString(ctxOperator), c.Param("drawID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// handleAdminBulkSettle — POST /api/admin/users/:userID/settle.
func (s *Server) handleAdminBulkSettle(c *gin.Context) {
	report, err := s.adminService.BulkSettle(c.Request.Context(), c.GetString(ctxOperator), c.Param("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleAdminCancelPending — POST /api/admin/users/:userID/cancel.
func (s *Server) handleAdminCancelPending(c *gin.Context) {
	report, err := s.adminService.CancelPending(c.Request.Context(), c.GetString(ctxOperator), c.Param("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type testPlayRequest struct {
	UserID     string `json:"userId" binding:"required"`
	DrawCount  int    `json:"drawCount"`
	ConfigSlug string `json:"configSlug"`
}

// handleAdminTestPlay — POST /api/admin/gacha/test-play: тестовая крутка
// без списания билетов, для проверки каталога и вероятностей.
func (s *Server) handleAdminTestPlay(c *gin.Context) {
	var req testPlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}
	if req.DrawCount == 0 {
		req.DrawCount = 1
	}

	log.WithFields(log.Fields{
		"operator": c.GetString(ctxOperator),
		"user_id":  req.UserID,
	}).Info("Админская тестовая крутка")

	resp, err := s.gachaService.Play(
		c.Request.Context(),
		req.UserID,
		uuid.NewString(),
		gacha.PlayOptions{DrawCount: req.DrawCount, ConfigSlug: req.ConfigSlug, Unlimited: true},
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleAdminPendingSummary — GET /api/admin/pending-summary.
func (s *Server) handleAdminPendingSummary(c *gin.Context) {
	summary, err := s.adminService.GetPendingSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// respondError переводит доменные ошибки в HTTP-коды.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrInsufficientTicket):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "недостаточно билетов"})
	case errors.Is(err, common.ErrInvalidDrawCount), errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrDrawNotFound), errors.Is(err, common.ErrNotFoundCardOrUser):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrWrongPassword), errors.Is(err, common.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("Необработанная ошибка запроса")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
	}
}
