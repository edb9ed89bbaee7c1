package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/gin-gonic/gin"
)

type sessionInfo struct {
	UserId     int    `json:"userId"`
	BusinessId string `json:"businessId"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

// SessionMiddleware resolves the redis-backed session of the presented token
// and stamps the tenant scope into the request context.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if !ok || token == "" {
			c.Next()
			return
		}

		var session sessionInfo
		exists, err := config.GetRedisObject("Token:"+token, &session)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), session.BusinessId)
		ctx = utils.SetUsernameInContext(ctx, session.Username)
		ctx = utils.SetUserNameInContext(ctx, session.Name)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
