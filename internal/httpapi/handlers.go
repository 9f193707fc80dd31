package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gymcrm-calls/internal/audit"
	"gymcrm-calls/internal/auth"
	"gymcrm-calls/internal/calls"
	"gymcrm-calls/internal/rbac"
	"gymcrm-calls/internal/reporting"
	"gymcrm-calls/pkg/logger"

	"github.com/gin-gonic/gin"
)

type CallStore interface {
	List(ctx context.Context, directorID int64, page int) (calls.Page, error)
	AssignClient(ctx context.Context, directorID, callID int64, clientID *int64) error
	LinkClientByPhone(ctx context.Context, directorID, callID, clientID int64) (int64, error)
}

type Reports interface {
	CallsSummary(ctx context.Context, req reporting.CallsSummaryRequest) (reporting.CallsSummary, error)
}

// TenantCache drops cached gym line owners.
type TenantCache interface {
	Invalidate(ctx context.Context, phone string) error
}

type AuditLog interface {
	LogClientAssigned(ctx context.Context, a audit.Actor, directorID, callID int64, clientID *int64) error
	LogClientLinked(ctx context.Context, a audit.Actor, directorID, callID, clientID, updated int64) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Calls   CallStore
	Reports Reports
	// Audit and TenantCache are optional.
	Audit       AuditLog
	TenantCache TenantCache
}

// --- Calls ---

func (h Handlers) ListCalls(c *gin.Context) {
	directorID, ok := requireDirector(c)
	if !ok {
		return
	}
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		page = n
	}

	out, err := h.Calls.List(c.Request.Context(), directorID, page)
	if err != nil {
		abortWithCallsError(c, "list calls failed", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type assignClientRequest struct {
	// ClientID null detaches the client.
	ClientID *int64 `json:"client_id"`
}

func (h Handlers) AssignClient(c *gin.Context) {
	directorID, ok := requireDirector(c)
	if !ok {
		return
	}
	callID, ok := callIDParam(c)
	if !ok {
		return
	}
	var req assignClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ClientID != nil && *req.ClientID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "client_id must be positive or null"})
		return
	}

	ctx := c.Request.Context()
	if err := h.Calls.AssignClient(ctx, directorID, callID, req.ClientID); err != nil {
		abortWithCallsError(c, "assign client failed", err)
		return
	}
	if h.Audit != nil {
		if err := h.Audit.LogClientAssigned(ctx, actorFrom(c), directorID, callID, req.ClientID); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err, "call_id", callID)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "call_id": callID, "client_id": req.ClientID})
}

type linkClientRequest struct {
	ClientID int64 `json:"client_id"`
}

// LinkClient attaches a client to the call and to every other call of the
// director from the same number.
func (h Handlers) LinkClient(c *gin.Context) {
	directorID, ok := requireDirector(c)
	if !ok {
		return
	}
	callID, ok := callIDParam(c)
	if !ok {
		return
	}
	var req linkClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ClientID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "client_id required"})
		return
	}

	ctx := c.Request.Context()
	updated, err := h.Calls.LinkClientByPhone(ctx, directorID, callID, req.ClientID)
	if err != nil {
		abortWithCallsError(c, "link client failed", err)
		return
	}
	if h.Audit != nil {
		if err := h.Audit.LogClientLinked(ctx, actorFrom(c), directorID, callID, req.ClientID, updated); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err, "call_id", callID)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "updated": updated})
}

// --- Reports ---

func (h Handlers) CallsReport(c *gin.Context) {
	directorID, ok := requireDirector(c)
	if !ok {
		return
	}
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}
	if !to.After(from) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be after from"})
		return
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		DirectorID: directorID,
		Range:      reporting.TimeRange{From: from.UTC(), To: to.UTC()},
	})
	if err != nil {
		logger.FromGin(c).Error("calls report failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Admin ---

// InvalidateGymLine drops the cached director of a gym line. The CRM calls it
// after moving a line to another director.
func (h Handlers) InvalidateGymLine(c *gin.Context) {
	p := strings.TrimSpace(c.Param("phone"))
	if p == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
		return
	}
	if h.TenantCache != nil {
		if err := h.TenantCache.Invalidate(c.Request.Context(), p); err != nil {
			logger.FromGin(c).Error("tenant cache invalidation failed", "err", err, "phone", p)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
			return
		}
	}
	logger.FromGin(c).Info("tenant cache invalidated", "phone", p)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Convenience middleware bundles.

func RequireDirectorAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireDirector(), rbac.RequireAnyRole(roles...)}
}

func requireDirector(c *gin.Context) (int64, bool) {
	id, err := auth.DirectorID(c.Request.Context())
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "director_id required"})
		return 0, false
	}
	return id, true
}

func callIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return 0, false
	}
	return id, true
}

func actorFrom(c *gin.Context) audit.Actor {
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	return audit.Actor{UserID: uid, Role: role, IP: c.ClientIP()}
}

func abortWithCallsError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid argument"})
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, calls.ErrClientNotFound):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "client not found"})
	default:
		logger.FromGin(c).Error(msg, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
