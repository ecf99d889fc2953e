package handler

import (
	"net/http"

	"event-checkin/internal/model"
	"event-checkin/internal/service"

	"github.com/gin-gonic/gin"
)

type ScannerSessionHandler struct {
	service service.ScannerSessionService
}

func NewScannerSessionHandler(service service.ScannerSessionService) *ScannerSessionHandler {
	return &ScannerSessionHandler{service: service}
}

func (h *ScannerSessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("scanner-sessions", h.Start)
	router.POST("scanner-sessions/:id/end", h.End)
	router.POST("scanner-sessions/:id/heartbeat", h.Heartbeat)
	router.GET("events/:id/scanner-sessions", h.ListByEvent)
}

func (h *ScannerSessionHandler) Start(c *gin.Context) {
	var req model.StartSessionRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	session, err := h.service.Start(c, CurrentUser(c), req.EventID)
	if err != nil {
		handleError(c, err, "StartSession")
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *ScannerSessionHandler) End(c *gin.Context) {
	id, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.End(c, CurrentUser(c), id); err != nil {
		handleError(c, err, "EndSession")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScannerSessionHandler) Heartbeat(c *gin.Context) {
	id, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Heartbeat(c, CurrentUser(c), id); err != nil {
		handleError(c, err, "Heartbeat")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScannerSessionHandler) ListByEvent(c *gin.Context) {
	eventID, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	sessions, err := h.service.ListByEvent(c, CurrentUser(c), eventID)
	if err != nil {
		handleError(c, err, "ListSessions")
		return
	}
	c.JSON(http.StatusOK, sessions)
}
