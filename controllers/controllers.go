package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop-service/middlewares"
	"shop-service/models"
)

// objectIDParam validates the :id path segment before any handler touches
// the store. Writes the 400 response itself on failure.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id: " + c.Param(name)})
		return primitive.NilObjectID, false
	}
	return id, true
}

func currentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(middlewares.ContextUser)
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	user, ok := value.(*models.User)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	return user, true
}
