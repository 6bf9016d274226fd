package notification

import (
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"notihub/internal/common"

	"github.com/gin-gonic/gin"
)

// phonePattern is the accepted international phone format: a plus sign
// followed by 10 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+\d{10,15}$`)

// Handler handles HTTP requests for the notification domain. It is the
// validation gate in front of the service: requests that reach the service
// are already well-formed.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// SendEmail handles POST /api/v1/notifications/email
func (h *Handler) SendEmail(c *gin.Context) {
	var req SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	n, err := h.service.SendEmail(c.Request.Context(), &req)
	if err != nil {
		slog.Error("send email failed",
			"error", err,
			"user_id", req.UserID,
			"to", req.EmailTo,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, n)
}

// SendSMS handles POST /api/v1/notifications/sms
func (h *Handler) SendSMS(c *gin.Context) {
	var req SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if !phonePattern.MatchString(req.PhoneNumber) {
		common.Error(c, http.StatusBadRequest, "phone_number must match +<10-15 digits>")
		return
	}

	n, err := h.service.SendSMS(c.Request.Context(), &req)
	if err != nil {
		slog.Error("send sms failed",
			"error", err,
			"user_id", req.UserID,
			"to", req.PhoneNumber,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, n)
}

// Resend handles POST /api/v1/notifications/:id/resend
func (h *Handler) Resend(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	n, err := h.service.Resend(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, n)
}

// GetNotification handles GET /api/v1/notifications/:id
func (h *Handler) GetNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	n, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, n)
}

// historyQuery is the bound query string for the history endpoint.
type historyQuery struct {
	UserID   int64  `form:"user_id" binding:"required,gt=0"`
	Type     string `form:"type"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ListHistory handles GET /api/v1/notifications
func (h *Handler) ListHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	channel := Channel(q.Type)
	if q.Type != "" && !IsValidChannel(channel) {
		common.Error(c, http.StatusBadRequest, "type must be one of Email, SMS, Push")
		return
	}

	page, err := h.service.ListHistory(c.Request.Context(), HistoryFilter{
		UserID:   q.UserID,
		Channel:  channel,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, page)
}

// RegisterRoutes registers notification routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/notifications/email", h.SendEmail)
	rg.POST("/notifications/sms", h.SendSMS)
	rg.POST("/notifications/:id/resend", h.Resend)
	rg.GET("/notifications", h.ListHistory)
	rg.GET("/notifications/:id", h.GetNotification)
}

// pathID parses and validates the :id path parameter, writing the error
// response itself when the value is malformed.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		common.Error(c, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
