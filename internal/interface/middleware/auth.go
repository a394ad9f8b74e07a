package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/minha-cantina/pkg/helpers"
	"github.com/oksasatya/minha-cantina/pkg/response"
)

const CtxUserIDKey = "userID"

// Auth validates the access token (cookie or Bearer header) and, when Redis is
// configured, requires the session it was issued for to still be active.
// It sets the numeric user id under CtxUserIDKey.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "token de acesso ausente", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "token de acesso inválido", nil)
			c.Abort()
			return
		}
		uid, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "token de acesso inválido", nil)
			c.Abort()
			return
		}

		if rdb != nil {
			sid, err := rdb.HGet(c.Request.Context(), helpers.SessionKey(claims.UserID), "sid").Result()
			if err != nil || sid != claims.SessionID {
				response.Error[any](c, http.StatusUnauthorized, "sessão não encontrada", nil)
				c.Abort()
				return
			}
		}

		c.Set(CtxUserIDKey, uid)
		c.Next()
	}
}

func accessToken(c *gin.Context) string {
	if token, err := c.Cookie(helpers.AccessCookie); err == nil && token != "" {
		return token
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// UserID returns the id set by Auth.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
