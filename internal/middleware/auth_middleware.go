package middleware

import (
	"net/http"
	"strings"

	"github.com/annel0/blockguard/internal/auth"
	"github.com/gin-gonic/gin"
)

// Ключи контекста gin, заполняемые JWT
const (
	ContextUsername = "username"
	ContextIsAdmin  = "is_admin"
)

// ErrorBody представляет тело ответа при отказе в доступе
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func deny(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorBody{Success: false, Message: msg})
}

// JWT проверяет токен в заголовке Authorization
func JWT(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			deny(c, http.StatusUnauthorized, "Отсутствует токен авторизации")
			return
		}

		// Формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			deny(c, http.StatusUnauthorized, "Неверный формат токена")
			return
		}

		claims, err := tokens.Validate(parts[1])
		if err != nil {
			deny(c, http.StatusUnauthorized, "Недействительный токен")
			return
		}

		c.Set(ContextUsername, claims.Username)
		c.Set(ContextIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// AdminOnly пропускает только администраторов. Ставится после JWT.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, exists := c.Get(ContextIsAdmin)
		if !exists {
			deny(c, http.StatusInternalServerError, "Отсутствует информация о пользователе")
			return
		}
		if ok, _ := isAdmin.(bool); !ok {
			deny(c, http.StatusForbidden, "Недостаточно прав доступа")
			return
		}
		c.Next()
	}
}
