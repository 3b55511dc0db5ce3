package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// SSE event names.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
)

type runOutcome struct {
	result *model.DiscoveryResult
	err    error
}

// streamDiscovery runs the workflow and streams its progress as server-sent
// events, ending with a result or error event. Closing the connection
// cancels the run; discoveries already saved are kept.
// GET /api/discoveries/run/stream
func (s *Server) streamDiscovery(c *gin.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.fail(c, errRunInProgress)
		return
	}
	defer s.running.Store(false)

	ctx := c.Request.Context()
	updates := make(chan model.Progress, 16)
	done := make(chan runOutcome, 1)

	go func() {
		result, err := s.runner.Run(ctx, func(p model.Progress) {
			select {
			case updates <- p:
			case <-ctx.Done():
			}
		})
		done <- runOutcome{result: result, err: err}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	for {
		select {
		case p := <-updates:
			c.SSEvent(EventProgress, p)
			c.Writer.Flush()
		case out := <-done:
			// Drain progress sent before the run returned.
			for len(updates) > 0 {
				c.SSEvent(EventProgress, <-updates)
			}
			if out.err != nil {
				_, code := classify(out.err)
				c.SSEvent(EventError, gin.H{"message": userMessage(out.err).Error(), "code": code, "result": out.result})
			} else {
				c.SSEvent(EventResult, out.result)
			}
			c.Writer.Flush()
			return
		}
	}
}
