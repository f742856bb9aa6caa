package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/repodash/repodash/pkg/types"
)

// targetResponse is the JSON shape of a target snapshot. Content travels as
// a plain string because the dashboard edits it in a textarea.
type targetResponse struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Content      string `json:"content"`
	VersionTag   string `json:"version_tag"`
	LastModified string `json:"last_modified,omitempty"`
}

func (s *Server) getTargetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		snap, err := s.workflowService.GetSnapshot(c.Request.Context(), key)
		if err != nil {
			abortWithError(c, err)
			return
		}

		target, _ := s.workflowService.Targets().Get(key)
		resp := targetResponse{
			Key:        key,
			Name:       target.Name,
			Content:    string(snap.Content),
			VersionTag: snap.VersionTag,
		}
		if !snap.LastModified.IsZero() {
			resp.LastModified = snap.LastModified.UTC().Format("2006-01-02T15:04:05Z")
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) updateTargetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.UpdateTargetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		newTag, err := s.workflowService.SubmitEdit(c.Request.Context(), c.Param("key"), []byte(req.Content), c.ClientIP())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"version_tag": newTag})
	}
}

func (s *Server) listHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		entries, err := s.workflowService.ListHistory(c.Request.Context(), c.Param("key"), page, pageSize)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if entries == nil {
			entries = []types.HistoryEntry{}
		}
		c.JSON(http.StatusOK, entries)
	}
}

func (s *Server) restoreTargetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		version := c.Param("version")
		if version == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
			return
		}

		newTag, err := s.workflowService.RestoreVersion(c.Request.Context(), c.Param("key"), version, c.ClientIP())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"version_tag": newTag})
	}
}

func (s *Server) clearTargetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		newTag, err := s.workflowService.ClearTarget(c.Request.Context(), c.Param("key"), c.ClientIP())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"version_tag": newTag})
	}
}

func (s *Server) statusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.workflowService.Status(c.Request.Context()))
	}
}

func (s *Server) lockStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, types.LockStateResponse{Locked: s.lockService.Current()})
	}
}
