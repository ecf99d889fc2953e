package handler

import (
	"io"
	"net/http"
	"strconv"

	"event-checkin/internal/export"
	"event-checkin/internal/model"
	"event-checkin/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxImportSize = 5 << 20

type GuestHandler struct {
	service service.GuestService
}

func NewGuestHandler(service service.GuestService) *GuestHandler {
	return &GuestHandler{service: service}
}

func (h *GuestHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("events/:id/guests", h.List)
	router.POST("events/:id/guests", h.Create)
	router.DELETE("events/:id/guests", h.DeleteBulk)
	router.POST("events/:id/guests/import", h.Import)
	router.PUT("guests/:id", h.Update)
	router.DELETE("guests/:id", h.Delete)
	router.GET("guests/:id/qr.png", h.QRCode)
}

func (h *GuestHandler) List(c *gin.Context) {
	eventID, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	guests, err := h.service.List(c, CurrentUser(c), eventID)
	if err != nil {
		handleError(c, err, "ListGuests")
		return
	}
	c.JSON(http.StatusOK, guests)
}

func (h *GuestHandler) Create(c *gin.Context) {
	eventID, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	var req model.CreateGuestRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	created, err := h.service.Create(c, CurrentUser(c), eventID, req)
	if err != nil {
		handleError(c, err, "CreateGuest")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Import accepts either a multipart "file" field or a raw text/csv body.
func (h *GuestHandler) Import(c *gin.Context) {
	eventID, ok := BindUUID(c, "id")
	if !ok {
		return
	}

	var body io.Reader = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable upload"})
			return
		}
		defer f.Close()
		body = f
	}

	created, err := h.service.Import(c, CurrentUser(c), eventID, body)
	if err != nil {
		handleError(c, err, "ImportGuests")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(created), "guests": created})
}

func (h *GuestHandler) Update(c *gin.Context) {
	id, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	var params model.UpdateGuestParams
	if err := BindJson(c, &params); err != nil {
		return
	}
	updated, err := h.service.Update(c, CurrentUser(c), id, params)
	if err != nil {
		handleError(c, err, "UpdateGuest")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *GuestHandler) Delete(c *gin.Context) {
	id, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c, CurrentUser(c), id); err != nil {
		handleError(c, err, "DeleteGuest")
		return
	}
	c.Status(http.StatusNoContent)
}

type deleteGuestsRequest struct {
	GuestIDs []uuid.UUID `json:"guestIds" binding:"required,min=1"`
}

func (h *GuestHandler) DeleteBulk(c *gin.Context) {
	eventID, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	var req deleteGuestsRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	deleted, err := h.service.DeleteBulk(c, CurrentUser(c), eventID, req.GuestIDs)
	if err != nil {
		handleError(c, err, "DeleteGuests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *GuestHandler) QRCode(c *gin.Context) {
	id, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	guest, err := h.service.Get(c, id)
	if err != nil {
		handleError(c, err, "GuestQRCode")
		return
	}

	size, _ := strconv.Atoi(c.Query("size"))
	if size <= 0 || size > 2048 {
		size = export.QRSize
	}
	var png []byte
	if c.Query("label") == "true" {
		png, err = export.AnnotatedQRPNG(guest)
	} else {
		png, err = export.QRPNG(guest.QRPayload(), size)
	}
	if err != nil {
		handleError(c, err, "GuestQRCode")
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+export.GuestFileBase(guest)+`.png"`)
	c.Data(http.StatusOK, "image/png", png)
}
