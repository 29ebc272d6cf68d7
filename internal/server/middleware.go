// Package server — HTTP-поверхность сервиса на gin.
// middleware.go: извлечение пользователя из заголовков внешней
// аутентификации, защита cron-триггера и операторских маршрутов.
package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jinjinsansan/tensei-sub001/internal/features/admin"
	"github.com/jinjinsansan/tensei-sub001/internal/features/users"
)

// Ключи контекста gin
const (
	ctxUserID   = "userID"
	ctxSession  = "sessionID"
	ctxOperator = "operator"
)

// userAuth читает идентификаторы из заголовков внешнего аутентификатора
// и регистрирует игрока при первом обращении.
// Сами заголовки проверяет обратный прокси, здесь им доверяем.
func userAuth(userService *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-App-User-ID")
		sessionID := c.GetHeader("X-Session-ID")
		if userID == "" || sessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "не авторизован"})
			return
		}

		if _, err := userService.EnsureUser(c.Request.Context(), userID, c.GetHeader("X-External-ID"), c.GetHeader("X-Nickname")); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ошибка регистрации пользователя"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxSession, sessionID)
		c.Next()
	}
}

// cronAuth пускает только вызовы с секретом внешнего планировщика.
func cronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || bearerToken(c) != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "не авторизован"})
			return
		}
		c.Next()
	}
}

// adminAuth проверяет операторскую сессию по bearer-токену.
func adminAuth(adminService *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "не авторизован"})
			return
		}
		session, err := adminService.CheckSession(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "сессия недействительна"})
			return
		}
		c.Set(ctxOperator, session.Operator)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
