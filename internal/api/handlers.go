package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mp3fbf/finance-analyzer/internal/analysis"
	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
)

// ReviewRequest is the body accepted by the review endpoints.
type ReviewRequest struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// RunResponse reports a finished run.
type RunResponse struct {
	Result *model.DiscoveryResult `json:"result"`
	Error  string                 `json:"error,omitempty"`
}

// runDiscovery runs the workflow synchronously.
// POST /api/discoveries/run
func (s *Server) runDiscovery(c *gin.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.fail(c, errRunInProgress)
		return
	}
	defer s.running.Store(false)

	result, err := s.runner.Run(c.Request.Context(), nil)
	if err != nil {
		status, code := classify(err)
		if result == nil || status != http.StatusInternalServerError {
			respondError(c, status, code, userMessage(err))
			return
		}
		// Discoveries saved before a persistence failure stay visible.
		c.JSON(http.StatusInternalServerError, RunResponse{Result: result, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, RunResponse{Result: result})
}

// listDiscoveries lists discoveries by descending impact.
// GET /api/discoveries?status=pending&limit=20
func (s *Server) listDiscoveries(c *gin.Context) {
	filter := service.DiscoveryFilter{Status: model.DiscoveryStatus(c.Query("status"))}
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.fail(c, err)
		return
	}
	filter.Limit = limit

	discoveries, err := s.storage.GetDiscoveries(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discoveries": discoveries, "count": len(discoveries)})
}

// nextDiscovery returns the highest-impact pending discovery.
// GET /api/discoveries/next
func (s *Server) nextDiscovery(c *gin.Context) {
	d, err := s.reviewer.Next(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GET /api/discoveries/:id
func (s *Server) getDiscovery(c *gin.Context) {
	d, err := s.storage.GetDiscoveryByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// POST /api/discoveries/:id/confirm
func (s *Server) confirmDiscovery(c *gin.Context) {
	req, ok := s.bindReview(c)
	if !ok {
		return
	}
	s.respondReview(c)(s.reviewer.Confirm(c.Request.Context(), c.Param("id"), req.Notes))
}

// POST /api/discoveries/:id/correct
func (s *Server) correctDiscovery(c *gin.Context) {
	req, ok := s.bindReview(c)
	if !ok {
		return
	}
	s.respondReview(c)(s.reviewer.Correct(c.Request.Context(), c.Param("id"), req.Name, req.Notes))
}

// POST /api/discoveries/:id/reject
func (s *Server) rejectDiscovery(c *gin.Context) {
	req, ok := s.bindReview(c)
	if !ok {
		return
	}
	s.respondReview(c)(s.reviewer.Reject(c.Request.Context(), c.Param("id"), req.Notes))
}

// bindReview accepts an empty body as an empty request.
func (s *Server) bindReview(c *gin.Context) (ReviewRequest, bool) {
	var req ReviewRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return req, false
	}
	return req, true
}

func (s *Server) respondReview(c *gin.Context) func(*model.MerchantDiscovery, error) {
	return func(d *model.MerchantDiscovery, err error) {
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// GET /api/learning
func (s *Server) listLearning(c *gin.Context) {
	records, err := s.storage.GetAllLearning(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"learning": records, "count": len(records)})
}

// listContexts derives transient contexts for every code, ranked by impact.
// Codes with a discovery are scored with its confidence.
// GET /api/contexts?limit=20
func (s *Server) listContexts(c *gin.Context) {
	ctx := c.Request.Context()
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.fail(c, err)
		return
	}

	txns, err := s.storage.GetAllTransactions(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	discoveries, err := s.storage.GetDiscoveries(ctx, service.DiscoveryFilter{})
	if err != nil {
		s.fail(c, err)
		return
	}
	confidence := make(map[string]float64, len(discoveries))
	for _, d := range discoveries {
		confidence[d.RawCode] = d.Confidence
	}

	ranked := analysis.RankByImpact(s.extractor.AnalyzeAll(txns), confidence)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"contexts": ranked, "count": len(ranked)})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", common.ErrInvalidInput, key)
	}
	return n, nil
}
