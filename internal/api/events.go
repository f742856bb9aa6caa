package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/repodash/repodash/internal/events"
	"github.com/repodash/repodash/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

// eventsHandler streams state-change events to a viewer over SSE. Each
// connection gets its own subscription and session id; a disconnect simply
// drops the subscription, there is no replay.
func (s *Server) eventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
			return
		}

		sessionID := uuid.NewString()
		ch := s.broadcaster.Subscribe()
		defer s.broadcaster.Unsubscribe(ch)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		fmt.Fprintf(c.Writer, "event: connected\ndata: {\"session\":%q}\n\n", sessionID)
		flusher.Flush()

		s.log.Debug("viewer connected", logger.Field{Key: "session", Value: sessionID})

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				s.log.Debug("viewer disconnected", logger.Field{Key: "session", Value: sessionID})
				return
			case <-heartbeat.C:
				fmt.Fprint(c.Writer, ": heartbeat\n\n")
				flusher.Flush()
			case ev, open := <-ch:
				if !open {
					return
				}
				data, err := events.MarshalEvent(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Name, data)
				flusher.Flush()
			}
		}
	}
}
