package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shop-service/store"
	"shop-service/utils"
)

const (
	ContextUserID  = "userID"
	ContextIsAdmin = "isAdmin"
	ContextUser    = "user"
)

// AuthMiddleware reads the session token from the jwt cookie, resolves the
// user and puts the identity into the request context. Handlers read the
// identity from there and never touch the token.
func AuthMiddleware(secret string, users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := utils.TokenFromCookie(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, no token"})
			return
		}

		userID, err := utils.ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, token failed"})
			return
		}

		user, err := users.FindByID(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, token failed"})
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextIsAdmin, user.IsAdmin)
		c.Set(ContextUser, user)
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, ok := c.Get(ContextIsAdmin); !ok || isAdmin != true {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not authorized as an admin"})
			return
		}
		c.Next()
	}
}
