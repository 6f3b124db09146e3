// Package handlers exposes the CarLog HTTP endpoints:
//   - GET  /health
//   - GET  /vehicles/{id}/recommendations
//   - POST /admin/trigger-reminders
//   - GET  /admin/scheduler
//   - GET  /admin/ai-logs
//
// Handlers validate input, call the services and map sentinel errors to
// status codes; they hold no business logic.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/carlog-backend/internal/domain"
	"github.com/tbourn/carlog-backend/internal/http/middleware"
	"github.com/tbourn/carlog-backend/internal/scheduler"
	"github.com/tbourn/carlog-backend/internal/services"
	"github.com/tbourn/carlog-backend/internal/utils"
)

// ReminderTrigger is the operator surface of the scheduler.
type ReminderTrigger interface {
	RunManual(ctx context.Context) (services.RunResult, error)
	Status() scheduler.Status
}

// AuditReader pages through the recommendation audit trail.
type AuditReader interface {
	ListLogsPage(ctx context.Context, offset, limit int) ([]domain.RecommendationLog, int64, error)
	// LogStats returns the trail size and newest entry time, used for ETags.
	LogStats(ctx context.Context) (int64, *time.Time, error)
}

// Recommender answers the vehicle recommendation read path.
type Recommender interface {
	ForVehicle(ctx context.Context, ownerID, vehicleID string) (*services.Recommendation, error)
}

// Pinger reports store reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the endpoints over their service dependencies. Any of them
// may be nil; the affected endpoints then answer 503.
type Handlers struct {
	reminders ReminderTrigger
	audit     AuditReader
	recs      Recommender
	store     Pinger
}

// New binds Handlers to the given services.
func New(reminders ReminderTrigger, audit AuditReader, recs Recommender, store Pinger) *Handlers {
	return &Handlers{reminders: reminders, audit: audit, recs: recs, store: store}
}

// userID is the authenticated subject set by middleware.Authenticate.
func userID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, size int, total int64) Pagination {
	pages := utils.TotalPages(total, size)
	return Pagination{Page: page, PageSize: size, Total: total, TotalPages: pages, HasNext: page < pages}
}

// clampPagination reads page and page_size from the query.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize),
	)
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Store     string `json:"store" example:"ok"`
	Scheduler string `json:"scheduler,omitempty" example:"idle"`
}

// Health godoc
// @ID          health
// @Summary     Liveness and store reachability
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Failure     503  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Store: "ok"}
	if h.reminders != nil {
		resp.Scheduler = string(h.reminders.Status().State)
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("health: store unreachable")
			resp.Status, resp.Store = "degraded", "unreachable"
			ok(c, http.StatusServiceUnavailable, resp)
			return
		}
	}
	ok(c, http.StatusOK, resp)
}
