package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/repodash/repodash/internal/events"
	"github.com/repodash/repodash/pkg/logger"
	"github.com/repodash/repodash/pkg/types"
)

func (s *Server) adminLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.AdminLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token, err := s.authService.Login(req.Password)
		if err != nil {
			s.auditService.Record(types.AuditAdminFailedLogin, map[string]any{
				"ip": c.ClientIP(),
			})
			s.log.Warn("admin login failed", logger.Field{Key: "ip", Value: c.ClientIP()})
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.AdminLoginResponse{Token: token})
	}
}

// requireAdmin validates the bearer token on admin routes.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if tokenStr == "" || tokenStr == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if _, err := s.authService.ValidateToken(tokenStr); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// setLockHandler engages or releases the system lock. Setting the flag to its
// current value still appends a transition; the history keeps every attempt.
func (s *Server) setLockHandler(locked bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.lockService.SetLocked(locked, c.ClientIP()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		action := "system-locked"
		eventName := events.EventSystemLocked
		if !locked {
			action = "system-unlocked"
			eventName = events.EventSystemUnlocked
		}
		s.auditService.Record(types.AuditAdminAction, map[string]any{
			"action": action,
			"ip":     c.ClientIP(),
		})
		s.broadcaster.Publish(events.Event{Name: eventName})
		s.log.Info("lock state changed",
			logger.Field{Key: "locked", Value: locked},
			logger.Field{Key: "ip", Value: c.ClientIP()},
		)

		c.JSON(http.StatusOK, types.LockStateResponse{Locked: locked})
	}
}

// limitQuery parses the "limit" query param, falling back to def when the
// value is missing, malformed, or not positive.
func limitQuery(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit < 1 {
		return def
	}
	return limit
}

func (s *Server) lockHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := limitQuery(c, 50)
		transitions, err := s.lockService.History(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		type transitionResponse struct {
			Locked bool   `json:"locked"`
			Actor  string `json:"actor"`
			At     string `json:"at"`
		}
		resp := make([]transitionResponse, len(transitions))
		for i, tr := range transitions {
			resp[i] = transitionResponse{
				Locked: tr.Locked,
				Actor:  tr.Actor,
				At:     tr.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) auditQueryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := limitQuery(c, 100)
		entries, err := s.auditService.QueryRecent(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if entries == nil {
			entries = []types.AuditEntry{}
		}
		c.JSON(http.StatusOK, entries)
	}
}

func (s *Server) deployHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.deployService.Trigger(c.Request.Context(), c.ClientIP()); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deploy triggered"})
	}
}
