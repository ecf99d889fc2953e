package handler

import (
	"io"
	"net/http"
	"strings"

	"event-checkin/internal/model"
	"event-checkin/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxPhotoUpload = 10 << 20

type CheckinHandler struct {
	service service.CheckinService
	events  service.EventService
}

func NewCheckinHandler(service service.CheckinService, events service.EventService) *CheckinHandler {
	return &CheckinHandler{service: service, events: events}
}

func (h *CheckinHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("checkin/scan", h.Scan)
	router.POST("checkin/commit", h.Commit)
	router.POST("guests/:id/toggle-checkin", h.Toggle)
	router.GET("events/:id/checkin-status", h.Status)
}

func (h *CheckinHandler) Scan(c *gin.Context) {
	var req model.ScanRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	result, err := h.service.Scan(c, CurrentUser(c), req)
	if err != nil {
		handleError(c, err, "Scan")
		return
	}
	c.JSON(http.StatusOK, result)
}

type commitRequest struct {
	GuestID   uuid.UUID  `json:"guestId" form:"guestId" binding:"required"`
	SessionID *uuid.UUID `json:"sessionId" form:"sessionId"`
}

// Commit takes JSON when the photo step was skipped, or multipart with a "photo" file.
func (h *CheckinHandler) Commit(c *gin.Context) {
	var (
		req   commitRequest
		photo io.Reader
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoUpload+1<<20)
		guestID, err := uuid.Parse(c.PostForm("guestId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid guestId"})
			return
		}
		req.GuestID = guestID
		if raw := c.PostForm("sessionId"); raw != "" {
			sessionID, err := uuid.Parse(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sessionId"})
				return
			}
			req.SessionID = &sessionID
		}
		if fh, err := c.FormFile("photo"); err == nil {
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable photo"})
				return
			}
			defer f.Close()
			photo = f
		}
	} else if err := BindJson(c, &req); err != nil {
		return
	}

	result, err := h.service.Commit(c, service.CommitRequest{
		GuestID:   req.GuestID,
		Usher:     CurrentUser(c).Usher(),
		SessionID: req.SessionID,
		Photo:     photo,
	})
	if err != nil {
		handleError(c, err, "Commit")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *CheckinHandler) Toggle(c *gin.Context) {
	id, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	var req model.ToggleCheckinRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	guest, err := h.service.Toggle(c, CurrentUser(c), id, req.CheckedIn)
	if err != nil {
		handleError(c, err, "ToggleCheckin")
		return
	}
	c.JSON(http.StatusOK, guest)
}

// Status tells a scanner whether every guest is already in before it opens.
func (h *CheckinHandler) Status(c *gin.Context) {
	eventID, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	event, err := h.events.Get(c, eventID)
	if err != nil {
		handleError(c, err, "CheckinStatus")
		return
	}
	all, err := h.service.AllCheckedIn(c, eventID)
	if err != nil {
		handleError(c, err, "CheckinStatus")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"allCheckedIn":    all,
		"totalGuests":     event.TotalGuests,
		"checkedInGuests": event.CheckedInGuests,
	})
}
