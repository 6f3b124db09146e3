// Operator endpoints. All of them sit behind middleware.RequireAdmin.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/carlog-backend/internal/domain"
	"github.com/tbourn/carlog-backend/internal/scheduler"
	"github.com/tbourn/carlog-backend/internal/utils"
)

// TriggerRemindersResponse reports a manual reminder run.
type TriggerRemindersResponse struct {
	Status                       string `json:"status" example:"success"`
	SMSRemindersSent             int    `json:"sms_reminders_sent" example:"12"`
	MaintenanceNotificationsSent int    `json:"maintenance_notifications_sent" example:"3"`
	Failed                       int    `json:"failed" example:"0"`
	Skipped                      int    `json:"skipped" example:"0"`
	TriggeredBy                  string `json:"triggered_by" example:"2b1c7a9e-0f51-4f0e-9f44-0c3a7e1d5b21"`
	Message                      string `json:"message"`
}

// ListAILogsResponse wraps a page of the recommendation audit trail.
type ListAILogsResponse struct {
	Logs       []domain.RecommendationLog `json:"logs"`
	Pagination Pagination                 `json:"pagination"`
}

// TriggerReminders godoc
// @ID          triggerReminders
// @Summary     Run the reminder batch now
// @Description Runs one batch synchronously. Rejected with 409 while another run is active.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.TriggerRemindersResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Run in progress"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /admin/trigger-reminders [post]
func (h *Handlers) TriggerReminders(c *gin.Context) {
	if h.reminders == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "scheduler not configured")
		return
	}
	res, err := h.reminders.RunManual(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		fail(c, http.StatusConflict, ErrCodeRunInProgress, "a reminder run is already in progress")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeRunFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, TriggerRemindersResponse{
		Status:                       "success",
		SMSRemindersSent:             res.SMSSent,
		MaintenanceNotificationsSent: res.MaintenanceSent,
		Failed:                       res.Failed,
		Skipped:                      res.Skipped,
		TriggeredBy:                  userID(c),
		Message:                      fmt.Sprintf("Sent %d SMS reminders and %d maintenance notifications", res.SMSSent, res.MaintenanceSent),
	})
}

// SchedulerStatus godoc
// @ID          schedulerStatus
// @Summary     Scheduler state, next run and last run report
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  scheduler.Status
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /admin/scheduler [get]
func (h *Handlers) SchedulerStatus(c *gin.Context) {
	if h.reminders == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "scheduler not configured")
		return
	}
	ok(c, http.StatusOK, h.reminders.Status())
}

// ListAILogs godoc
// @ID          listAILogs
// @Summary     Recommendation audit trail (paginated, newest first)
// @Description Supports a weak ETag via If-None-Match and may return 304.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListAILogsResponse
// @Header      200  {string}  ETag  "Weak ETag for the current trail"
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /admin/ai-logs [get]
func (h *Handlers) ListAILogs(c *gin.Context) {
	if h.audit == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log not configured")
		return
	}
	ctx := c.Request.Context()
	page, size := clampPagination(c)

	// ETag pre-check (best effort).
	if count, newest, err := h.audit.LogStats(ctx); err == nil {
		var ts int64
		if newest != nil {
			ts = newest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"ai-logs:%d:%d:%d:%d"`, count, ts, page, size)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.audit.ListLogsPage(ctx, utils.Offset(page, size), size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.RecommendationLog{}
	}
	ok(c, http.StatusOK, ListAILogsResponse{Logs: items, Pagination: newPagination(page, size, total)})
}
