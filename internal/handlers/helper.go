package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/middleware"
	"github.com/gin-gonic/gin"
)

const headerSessionToken = "X-Session-Token"

// parseIDParam reads a positive numeric path parameter. It writes the 400
// response itself and returns 0 on failure.
func parseIDParam(c *gin.Context, param string) uint {
	idStr := strings.TrimSpace(c.Param(param))
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		details := "ID must be a positive integer"
		if err != nil {
			details = err.Error()
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: details,
			Code:    "invalid_parameter",
		})
		return 0
	}
	return uint(id)
}

// currentUser returns the authenticated user id set by middleware.RequireUser.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
			Code:    "unauthenticated",
		})
		return "", false
	}
	return userID, true
}

// sessionToken prefers the X-Session-Token header, then the body field, then
// the session_token query parameter.
func sessionToken(c *gin.Context, fromBody string) string {
	if token := strings.TrimSpace(c.GetHeader(headerSessionToken)); token != "" {
		return token
	}
	if fromBody != "" {
		return fromBody
	}
	return c.Query("session_token")
}

// bindOptionalJSON binds a JSON body when one was sent. Empty bodies are fine.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
			Code:    "invalid_payload",
		})
		return false
	}
	return true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
			Code:    "invalid_payload",
		})
		return false
	}
	return true
}
