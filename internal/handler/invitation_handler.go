package handler

import (
	"net/http"

	"event-checkin/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InvitationHandler struct {
	service service.InvitationService
}

func NewInvitationHandler(service service.InvitationService) *InvitationHandler {
	return &InvitationHandler{service: service}
}

func (h *InvitationHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("whatsapp/send-invitation", h.SendWhatsApp)
	router.POST("whatsapp/send-bulk", h.SendWhatsAppBulk)
	router.POST("email/send-invitation", h.SendEmail)
}

type sendInvitationRequest struct {
	GuestID uuid.UUID `json:"guestId" binding:"required"`
	EventID uuid.UUID `json:"eventId" binding:"required"`
}

type sendBulkRequest struct {
	GuestIDs []uuid.UUID `json:"guestIds" binding:"required,min=1"`
	EventID  uuid.UUID   `json:"eventId" binding:"required"`
}

func (h *InvitationHandler) SendWhatsApp(c *gin.Context) {
	var req sendInvitationRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	detail, err := h.service.SendWhatsApp(c, CurrentUser(c), req.EventID, req.GuestID)
	if err != nil {
		handleError(c, err, "SendWhatsApp")
		return
	}

	var messageID string
	if len(detail.MessageIDs) > 0 {
		messageID = detail.MessageIDs[0]
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"messageId":  messageID,
		"messageIds": detail.MessageIDs,
	})
}

func (h *InvitationHandler) SendWhatsAppBulk(c *gin.Context) {
	var req sendBulkRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	result, err := h.service.SendWhatsAppBulk(c, CurrentUser(c), req.EventID, req.GuestIDs)
	if err != nil {
		handleError(c, err, "SendWhatsAppBulk")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *InvitationHandler) SendEmail(c *gin.Context) {
	var req sendInvitationRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	taskID, err := h.service.EnqueueEmail(c, CurrentUser(c), req.EventID, req.GuestID)
	if err != nil {
		handleError(c, err, "SendEmail")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"taskId": taskID})
}
