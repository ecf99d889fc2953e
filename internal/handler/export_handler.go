package handler

import (
	"net/http"

	"event-checkin/internal/service"
	"event-checkin/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ExportHandler serves QR bundles and analytics downloads.
type ExportHandler struct {
	bundles   service.BundleService
	analytics service.AnalyticsService
}

func NewExportHandler(bundles service.BundleService, analytics service.AnalyticsService) *ExportHandler {
	return &ExportHandler{bundles: bundles, analytics: analytics}
}

func (h *ExportHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("generate-bundle", h.GenerateBundle)
	router.GET("events/:id/analytics", h.Analytics)
}

func attachment(c *gin.Context, filename, contentType string) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", contentType)
}

func (h *ExportHandler) GenerateBundle(c *gin.Context) {
	var req service.BundleRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	plan, err := h.bundles.Prepare(c, CurrentUser(c), req)
	if err != nil {
		handleError(c, err, "GenerateBundle")
		return
	}
	if plan.RequiresConfirmation {
		c.JSON(http.StatusConflict, gin.H{
			"error":                plan.Warning,
			"requiresConfirmation": true,
			"guestCount":           len(plan.Guests),
		})
		return
	}

	attachment(c, plan.Filename(), plan.ContentType())
	if plan.Warning != "" {
		c.Header("X-Bundle-Warning", plan.Warning)
	}
	c.Status(http.StatusOK)
	if err := h.bundles.Write(c, c.Writer, plan); err != nil {
		// headers are already out; the client sees a truncated file
		logger.WithComponent("handler").Error("bundle generation failed",
			zap.String("event_id", plan.Event.ID.String()), zap.Error(err))
		_ = c.Error(err)
	}
}

func (h *ExportHandler) Analytics(c *gin.Context) {
	eventID, ok := BindUUID(c, "id")
	if !ok {
		return
	}
	format := service.AnalyticsFormat(c.DefaultQuery("format", string(service.AnalyticsJSON)))
	switch format {
	case service.AnalyticsJSON, service.AnalyticsCSV, service.AnalyticsXLSX, service.AnalyticsPDF:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json, csv, xlsx or pdf"})
		return
	}

	report, event, err := h.analytics.Report(c, CurrentUser(c), eventID)
	if err != nil {
		handleError(c, err, "Analytics")
		return
	}
	if format == service.AnalyticsJSON {
		c.JSON(http.StatusOK, report)
		return
	}

	attachment(c, service.AnalyticsFilename(event, format), format.ContentType())
	c.Status(http.StatusOK)
	if err := h.analytics.Export(c.Writer, report, format); err != nil {
		logger.WithComponent("handler").Error("analytics export failed",
			zap.String("event_id", eventID.String()), zap.Error(err))
		_ = c.Error(err)
	}
}
