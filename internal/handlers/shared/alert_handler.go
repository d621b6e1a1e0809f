package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"safelink/internal/models"
	"safelink/internal/services"
	"safelink/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AlertHandler struct {
	escalationService services.EscalationService
}

func NewAlertHandler(escalationService services.EscalationService) *AlertHandler {
	return &AlertHandler{
		escalationService: escalationService,
	}
}

// CreateAlert accepts a distress report and starts the escalation lifecycle
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	var request models.CreateAlertRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	response, err := h.escalationService.CreateAlert(c.Request.Context(), &request)
	if err != nil {
		h.writeError(c, err, "ALERT_CREATION_FAILED", "Failed to create alert")
		return
	}

	utils.CreatedResponse(c, "Alert created", response)
}

// AcceptAlert records a responder taking ownership of an alert
func (h *AlertHandler) AcceptAlert(c *gin.Context) {
	h.respond(c, models.ResponseOutcomeAccept)
}

// RejectAlert records a responder dismissing an alert
func (h *AlertHandler) RejectAlert(c *gin.Context) {
	h.respond(c, models.ResponseOutcomeReject)
}

func (h *AlertHandler) respond(c *gin.Context, outcome models.ResponseOutcome) {
	alertID, ok := h.alertIDParam(c)
	if !ok {
		return
	}

	var request models.RespondRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	response, err := h.escalationService.RespondToAlert(c.Request.Context(), alertID, outcome, &request)
	if err != nil {
		h.writeError(c, err, "ALERT_RESPONSE_FAILED", "Failed to record response")
		return
	}

	utils.SuccessResponse(c, "Response recorded", response)
}

// ForwardAlert pushes the alert to the security office roster
func (h *AlertHandler) ForwardAlert(c *gin.Context) {
	alertID, ok := h.alertIDParam(c)
	if !ok {
		return
	}

	var request models.ForwardRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	notified, err := h.escalationService.ForwardToSecurity(c.Request.Context(), alertID, &request)
	if err != nil {
		h.writeError(c, err, "ALERT_FORWARD_FAILED", "Failed to forward alert")
		return
	}

	utils.SuccessResponse(c, "Alert forwarded to security", gin.H{"notified_count": notified})
}

// GetAlert retrieves one alert with its full escalation state
func (h *AlertHandler) GetAlert(c *gin.Context) {
	alertID, ok := h.alertIDParam(c)
	if !ok {
		return
	}

	alert, err := h.escalationService.GetAlert(c.Request.Context(), alertID)
	if err != nil {
		h.writeError(c, err, "ALERT_FETCH_FAILED", "Failed to get alert")
		return
	}

	utils.SuccessResponse(c, "Alert retrieved", alert)
}

// ListAlerts returns alerts newest-first with cursor pagination. Supports
// ?status=, ?limit= and ?cursor= query parameters.
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	var status *models.AlertStatus
	if raw := c.Query("status"); raw != "" {
		s := models.AlertStatus(raw)
		switch s {
		case models.AlertStatusPending, models.AlertStatusAccepted, models.AlertStatusRejected, models.AlertStatusEscalated:
			status = &s
		default:
			utils.BadRequestResponse(c, "Invalid status filter")
			return
		}
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(utils.DefaultListLimit)))
	cursor := c.Query("cursor")

	alerts, nextCursor, err := h.escalationService.ListAlerts(c.Request.Context(), status, limit, cursor)
	if err != nil {
		h.writeError(c, err, "ALERT_LIST_FAILED", "Failed to list alerts")
		return
	}

	utils.SuccessResponseWithMeta(c, "Alerts retrieved", alerts, &utils.Meta{
		Count:      len(alerts),
		NextCursor: nextCursor,
	})
}

// ListPendingAlerts returns every alert still awaiting a response
func (h *AlertHandler) ListPendingAlerts(c *gin.Context) {
	alerts, err := h.escalationService.GetPendingAlerts(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "ALERT_LIST_FAILED", "Failed to list pending alerts")
		return
	}

	utils.SuccessResponseWithMeta(c, "Pending alerts retrieved", alerts, &utils.Meta{Count: len(alerts)})
}

// GetDeliveryLogs returns the notification audit trail for an alert
func (h *AlertHandler) GetDeliveryLogs(c *gin.Context) {
	alertID, ok := h.alertIDParam(c)
	if !ok {
		return
	}

	logs, err := h.escalationService.GetDeliveryLogs(c.Request.Context(), alertID)
	if err != nil {
		h.writeError(c, err, "DELIVERY_LOG_FETCH_FAILED", "Failed to get delivery logs")
		return
	}

	utils.SuccessResponseWithMeta(c, "Delivery logs retrieved", logs, &utils.Meta{Count: len(logs)})
}

// ExecuteStage1 is the scheduler webhook for the first escalation stage.
// Safe to re-deliver; an already-run stage reports itself as skipped.
func (h *AlertHandler) ExecuteStage1(c *gin.Context) {
	h.executeStage(c, h.escalationService.ExecuteStage1)
}

// ExecuteStage2 is the scheduler webhook for the final escalation stage
func (h *AlertHandler) ExecuteStage2(c *gin.Context) {
	h.executeStage(c, h.escalationService.ExecuteStage2)
}

func (h *AlertHandler) executeStage(c *gin.Context, run func(ctx context.Context, alertID primitive.ObjectID) (*models.StageResult, error)) {
	alertID, ok := h.alertIDParam(c)
	if !ok {
		return
	}

	result, err := run(c.Request.Context(), alertID)
	if err != nil {
		h.writeError(c, err, "STAGE_EXECUTION_FAILED", "Failed to execute escalation stage")
		return
	}

	utils.SuccessResponse(c, "Stage executed", result)
}

func (h *AlertHandler) alertIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	alertID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid alert ID")
		return primitive.NilObjectID, false
	}
	return alertID, true
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func (h *AlertHandler) writeError(c *gin.Context, err error, code, message string) {
	var validationErr *utils.ValidationError
	if errors.As(err, &validationErr) {
		utils.ValidationErrorResponse(c, validationErr.Fields)
		return
	}

	var resolvedErr *utils.AlreadyResolvedError
	if errors.As(err, &resolvedErr) {
		utils.ConflictResponse(c, "Alert already resolved: "+resolvedErr.Status)
		return
	}

	if errors.Is(err, utils.ErrAlertNotFound) {
		utils.NotFoundResponse(c, "Alert")
		return
	}

	utils.ErrorResponse(c, http.StatusInternalServerError, code, message+": "+err.Error())
}
