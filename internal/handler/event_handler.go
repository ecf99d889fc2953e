package handler

import (
	"net/http"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/service"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	service service.EventService
}

func NewEventHandler(service service.EventService) *EventHandler {
	return &EventHandler{service: service}
}

func (h *EventHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("events", h.List)
	router.POST("events", h.Create)
	router.GET("events/:id", h.Get)
	router.PUT("events/:id", h.Update)
	router.DELETE("events/:id", h.Delete)
}

type listEventsQuery struct {
	OwnerID     string `form:"ownerId"`
	Status      string `form:"status"`
	StartsAfter string `form:"startsAfter"`
}

func (h *EventHandler) List(c *gin.Context) {
	var q listEventsQuery
	if err := BindQuery(c, &q); err != nil {
		return
	}

	filter := model.EventFilter{OwnerID: q.OwnerID, Status: model.EventStatus(q.Status)}
	if filter.Status != "" && !filter.Status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}
	if q.StartsAfter != "" {
		t, err := time.Parse(time.RFC3339, q.StartsAfter)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "startsAfter must be RFC3339"})
			return
		}
		filter.StartsAfter = &t
	}

	events, err := h.service.List(c, filter)
	if err != nil {
		handleError(c, err, "ListEvents")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) Get(c *gin.Context) {
	id, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	event, err := h.service.Get(c, id)
	if err != nil {
		handleError(c, err, "GetEvent")
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) Create(c *gin.Context) {
	var req model.CreateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	created, err := h.service.Create(c, CurrentUser(c), req)
	if err != nil {
		handleError(c, err, "CreateEvent")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *EventHandler) Update(c *gin.Context) {
	id, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	var params model.UpdateEventParams
	if err := BindJson(c, &params); err != nil {
		return
	}
	updated, err := h.service.Update(c, CurrentUser(c), id, params)
	if err != nil {
		handleError(c, err, "UpdateEvent")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *EventHandler) Delete(c *gin.Context) {
	id, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c, CurrentUser(c), id); err != nil {
		handleError(c, err, "DeleteEvent")
		return
	}
	c.Status(http.StatusNoContent)
}
