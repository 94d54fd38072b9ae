package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Identity is established by the gateway in front of the service
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-ID"

	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// RequireUser rejects requests without a forwarded user id and stores it in
// the gin context under "user_id".
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Message: "User not authenticated",
				Code:    "unauthenticated",
			})
			return
		}

		c.Set(ContextUserID, userID)
		if role := strings.TrimSpace(c.GetHeader(HeaderUserRole)); role != "" {
			c.Set(ContextUserRole, strings.ToLower(role))
		}
		c.Next()
	}
}

// RequireRole only lets through users whose forwarded role is one of roles.
// It must run after RequireUser.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(r)] = struct{}{}
	}

	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
				Message: "Insufficient permissions",
				Code:    "forbidden",
			})
			return
		}
		c.Next()
	}
}

// RequestID makes sure every request carries an X-Request-ID, generating one
// when the caller did not send it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(HeaderRequestID, id)
		}
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}
