package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"rotapool/internal/model"
	"rotapool/internal/pool"
	"rotapool/pkg/interfaces"
	"rotapool/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	maxBatchSize      = 1000
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventLister reads back the lifecycle event log
type EventLister interface {
	ListByResource(ctx context.Context, kind model.ResourceKind, resourceID string, limit int) ([]*interfaces.ResourceEvent, error)
}

// PoolHandler serves both resource pools under /api/v1/:pool
type PoolHandler struct {
	managers map[string]*pool.Manager // keyed by route name: accounts, proxies
	events   EventLister              // Optional
}

// NewPoolHandler creates a pool handler. Nil managers are treated as disabled pools.
func NewPoolHandler(accounts, proxies *pool.Manager) *PoolHandler {
	h := &PoolHandler{managers: make(map[string]*pool.Manager, 2)}
	if accounts != nil {
		h.managers["accounts"] = accounts
	}
	if proxies != nil {
		h.managers["proxies"] = proxies
	}
	return h
}

// SetEventLister enables the events route
func (h *PoolHandler) SetEventLister(events EventLister) {
	h.events = events
}

// AddResourceRequest single resource body; kind comes from the route
type AddResourceRequest struct {
	ID                   string                   `json:"id"`
	Status               model.ResourceStatus     `json:"status"`
	Priority             model.Priority           `json:"priority"`
	Region               model.Region             `json:"region"`
	DailyLimit           int                      `json:"daily_limit"`
	MaxConsecutiveErrors int                      `json:"max_consecutive_errors"`
	Account              *model.AccountCredential `json:"account,omitempty"`
	Proxy                *model.ProxyEndpoint     `json:"proxy,omitempty"`
}

func (r *AddResourceRequest) toConfig(kind model.ResourceKind) *model.ResourceConfig {
	return &model.ResourceConfig{
		ID:                   r.ID,
		Kind:                 kind,
		Status:               r.Status,
		Priority:             r.Priority,
		Region:               r.Region,
		DailyLimit:           r.DailyLimit,
		MaxConsecutiveErrors: r.MaxConsecutiveErrors,
		Account:              r.Account,
		Proxy:                r.Proxy,
	}
}

// AddResourceBatchRequest batch add body
type AddResourceBatchRequest struct {
	Resources []AddResourceRequest `json:"resources" binding:"required"`
}

// SetStatusRequest admin status change body
type SetStatusRequest struct {
	Status model.ResourceStatus `json:"status" binding:"required"`
}

// ReportSuccessRequest success outcome body
type ReportSuccessRequest struct {
	LatencyMs int64 `json:"latency_ms"`
}

// ReportErrorRequest failure outcome body
type ReportErrorRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// manager resolves the :pool param, writing 404 when it names no enabled pool
func (h *PoolHandler) manager(c *gin.Context) (*pool.Manager, bool) {
	name := c.Param("pool")
	m, ok := h.managers[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or disabled pool: " + name})
		return nil, false
	}
	return m, true
}

// AddResource registers one resource
// @Router /api/v1/{pool}/resources [post]
func (h *PoolHandler) AddResource(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req AddResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := m.AddResource(c.Request.Context(), req.toConfig(m.Kind()))
	if err != nil {
		h.writeError(c, "add resource", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

// AddResourceBatch registers many resources, reporting each outcome
// @Router /api/v1/{pool}/resources/batch [post]
func (h *PoolHandler) AddResourceBatch(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req AddResourceBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Resources) == 0 || len(req.Resources) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resources must hold between 1 and " + strconv.Itoa(maxBatchSize) + " entries"})
		return
	}

	cfgs := make([]*model.ResourceConfig, 0, len(req.Resources))
	for i := range req.Resources {
		cfgs = append(cfgs, req.Resources[i].toConfig(m.Kind()))
	}

	results := m.AddResourceBatch(c.Request.Context(), cfgs)
	added := 0
	for _, ok := range results {
		if ok {
			added++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"added":   added,
		"total":   len(cfgs),
	})
}

// GetResource returns one resource with derived scores
// @Router /api/v1/{pool}/resources/{id} [get]
func (h *PoolHandler) GetResource(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	detail, err := m.GetResource(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "get resource", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// RemoveResource deletes one resource
// @Router /api/v1/{pool}/resources/{id} [delete]
func (h *PoolHandler) RemoveResource(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := m.RemoveResource(c.Request.Context(), id); err != nil {
		h.writeError(c, "remove resource", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "removed": true})
}

// SetStatus applies an administrative status change
// @Router /api/v1/{pool}/resources/{id}/status [put]
func (h *PoolHandler) SetStatus(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := m.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		h.writeError(c, "set status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// Acquire selects the best matching resource
// @Param region query string false "us, eu, asia or global"
// @Param priority query string false "high, normal or low"
// @Router /api/v1/{pool}/acquire [post]
func (h *PoolHandler) Acquire(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	filter := model.SelectionFilter{
		Region:   model.Region(c.Query("region")),
		Priority: model.Priority(c.Query("priority")),
	}
	if err := pool.ValidateFilter(filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handle, err := m.Acquire(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, "acquire", err)
		return
	}
	if handle == nil {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "resource": handle})
}

// ReportSuccess records a successful use
// @Router /api/v1/{pool}/resources/{id}/success [post]
func (h *PoolHandler) ReportSuccess(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req ReportSuccessRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.LatencyMs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latency_ms must not be negative"})
		return
	}

	id := c.Param("id")
	latency := time.Duration(req.LatencyMs) * time.Millisecond
	if err := m.ReportSuccess(c.Request.Context(), id, latency); err != nil {
		h.writeError(c, "report success", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "recorded": true})
}

// ReportError records a failed use
// @Router /api/v1/{pool}/resources/{id}/error [post]
func (h *PoolHandler) ReportError(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req ReportErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := m.ReportError(c.Request.Context(), id, req.Reason); err != nil {
		h.writeError(c, "report error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "recorded": true})
}

// GetStatistics returns the pool aggregate
// @Router /api/v1/{pool}/statistics [get]
func (h *PoolHandler) GetStatistics(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	stats, err := m.GetStatistics(c.Request.Context())
	if err != nil {
		h.writeError(c, "get statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListEvents returns the latest lifecycle events of one resource
// @Param limit query int false "Number of events (default: 50, max: 500)"
// @Router /api/v1/{pool}/resources/{id}/events [get]
func (h *PoolHandler) ListEvents(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	if h.events == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "event log not enabled"})
		return
	}

	limit := defaultEventLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxEventLimit {
				limit = maxEventLimit
			}
		}
	}

	id := c.Param("id")
	events, err := h.events.ListByResource(c.Request.Context(), m.Kind(), id, limit)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to list events of %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "events": events})
}

// writeError maps pool errors to status codes
func (h *PoolHandler) writeError(c *gin.Context, op string, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, model.ErrInvalidConfig):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrStoreUnavailable):
		logger.ErrorCtx(ctx, "%s failed, store unavailable: %v", op, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	case errors.Is(err, model.ErrMalformedRecord):
		logger.ErrorCtx(ctx, "%s failed on malformed record: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		logger.ErrorCtx(ctx, "%s failed: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
