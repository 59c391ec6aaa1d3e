package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const adminIDKey = "adminID"

// RequireAuth rejects requests without a valid Bearer token and stores the
// admin id in the gin context
func RequireAuth(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := TokenFromRequest(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		id, err := primitive.ObjectIDFromHex(claims.AdminID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}

		c.Set(adminIDKey, id)
		c.Next()
	}
}

// TokenFromRequest reads the token from the Authorization header, falling
// back to the token query parameter used by browser websocket clients
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// AdminID returns the authenticated admin id set by RequireAuth
func AdminID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(adminIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

// SetAdminID is used by tests and internal callers that authenticate by other means
func SetAdminID(c *gin.Context, id primitive.ObjectID) {
	c.Set(adminIDKey, id)
}
