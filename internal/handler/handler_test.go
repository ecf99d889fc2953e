package handler

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/service"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthentication(t *testing.T) {
	r := setupTestRouter()

	t.Run("ping is public", func(t *testing.T) {
		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/ping", nil, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events", nil, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		req := createJSONHTTPRequest(t, http.MethodGet, "/api/events", nil, nil)
		req.Header.Set("Authorization", "Bearer "+signTokenWith(t, "another-secret", admin))
		w := r.serve(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	r.assertExpectations(t)
}

func TestClaimsUser(t *testing.T) {
	tests := []struct {
		name    string
		appRole string
		role    string
		want    model.Role
	}{
		{name: "app metadata wins", appRole: "super_admin", role: "authenticated", want: model.RoleSuperAdmin},
		{name: "top level role", role: "admin", want: model.RoleAdmin},
		{name: "unknown role is usher", role: "authenticated", want: model.RoleUsher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Claims{Role: tt.role}
			c.AppMetadata.Role = tt.appRole
			c.UserMetadata.FullName = "Full Name"
			c.Subject = "u1"

			u := c.User()
			assert.Equal(t, tt.want, u.Role)
			assert.Equal(t, "Full Name", u.Name)
			assert.Equal(t, "u1", u.ID)
		})
	}
}

func TestAuthenticator_Parse(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	claims, err := auth.Parse(signToken(t, admin))
	require.NoError(t, err)
	assert.Equal(t, admin, claims.User())

	_, err = auth.Parse(signTokenWith(t, "other", admin))
	assert.Error(t, err)

	_, err = auth.Parse(signToken(t, &model.AuthUser{Role: model.RoleAdmin}))
	assert.Error(t, err, "tokens without a subject are rejected")
}

func TestEventHandler(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		r := setupTestRouter()
		event := &model.Event{ID: uuid.New(), Title: "Gala", Status: model.EventStatusActive}
		r.events.On("Get", mock.Anything, event.ID).Return(event, nil).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events/"+event.ID.String(), nil, usher))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Gala", decode(t, w)["title"])
		r.assertExpectations(t)
	})

	t.Run("get unknown", func(t *testing.T) {
		r := setupTestRouter()
		id := uuid.New()
		r.events.On("Get", mock.Anything, id).Return(nil, apperrors.ErrEventNotFound).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events/"+id.String(), nil, usher))
		assert.Equal(t, http.StatusNotFound, w.Code)
		r.assertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		r := setupTestRouter()
		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events/not-a-uuid", nil, usher))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		r.events.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("list rejects unknown status", func(t *testing.T) {
		r := setupTestRouter()
		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events?status=archived", nil, usher))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("create forbidden", func(t *testing.T) {
		r := setupTestRouter()
		req := model.CreateEventRequest{Title: "Gala", StartsAt: time.Now().UTC().Truncate(time.Second), OwnerID: "someone-else", Status: model.EventStatusDraft}
		r.events.On("Create", mock.Anything, admin, mock.AnythingOfType("model.CreateEventRequest")).
			Return(nil, fmt.Errorf("create for another owner: %w", apperrors.ErrNotEventOwner)).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/events", req, admin))
		assert.Equal(t, http.StatusForbidden, w.Code)
		r.assertExpectations(t)
	})

	t.Run("create with invalid json", func(t *testing.T) {
		r := setupTestRouter()
		w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/events", InvalidJSON, admin))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		r := setupTestRouter()
		id := uuid.New()
		r.events.On("Delete", mock.Anything, admin, id).Return(nil).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodDelete, "/api/events/"+id.String(), nil, admin))
		assert.Equal(t, http.StatusNoContent, w.Code)
		r.assertExpectations(t)
	})
}

func TestCheckinHandler_Scan(t *testing.T) {
	eventID := uuid.New()
	scan := model.ScanRequest{EventID: eventID, Payload: eventID.String() + ":ABC123"}

	tests := []struct {
		name     string
		result   *model.ScanResult
		err      error
		wantCode int
	}{
		{name: "success", result: &model.ScanResult{Outcome: model.ScanSuccess, Message: "Guest found"}, wantCode: http.StatusOK},
		{name: "duplicate is still a 200", result: &model.ScanResult{Outcome: model.ScanDuplicate}, wantCode: http.StatusOK},
		{name: "busy", err: apperrors.ErrScannerBusy, wantCode: http.StatusConflict},
		{name: "cooldown", err: apperrors.ErrScanCooldown, wantCode: http.StatusTooManyRequests},
		{name: "unexpected", err: io.ErrUnexpectedEOF, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupTestRouter()
			r.checkin.On("Scan", mock.Anything, usher, scan).Return(tt.result, tt.err).Once()

			w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/checkin/scan", scan, usher))
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.result != nil {
				assert.Equal(t, string(tt.result.Outcome), decode(t, w)["outcome"])
			}
			r.assertExpectations(t)
		})
	}

	t.Run("payload is required", func(t *testing.T) {
		r := setupTestRouter()
		w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/checkin/scan", model.ScanRequest{EventID: eventID}, usher))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCheckinHandler_Commit(t *testing.T) {
	guestID := uuid.New()
	isCommitFor := func(withPhoto bool) interface{} {
		return mock.MatchedBy(func(req service.CommitRequest) bool {
			return req.GuestID == guestID &&
				req.Usher.UserID == usher.ID &&
				req.Usher.Name == "Uma" &&
				(req.Photo != nil) == withPhoto
		})
	}

	t.Run("json without photo", func(t *testing.T) {
		r := setupTestRouter()
		guest := &model.Guest{ID: guestID, Name: "Ada", CheckedIn: true}
		r.checkin.On("Commit", mock.Anything, isCommitFor(false)).
			Return(&model.CommitResult{Outcome: model.CommitCheckedIn, Guest: guest}, nil).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/checkin/commit", gin.H{"guestId": guestID}, usher))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(model.CommitCheckedIn), decode(t, w)["outcome"])
		r.assertExpectations(t)
	})

	t.Run("multipart with photo", func(t *testing.T) {
		r := setupTestRouter()
		r.checkin.On("Commit", mock.Anything, isCommitFor(true)).
			Return(&model.CommitResult{Outcome: model.CommitAlready, Guest: &model.Guest{ID: guestID}}, nil).Once()

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("guestId", guestID.String()))
		part, err := mw.CreateFormFile("photo", "face.jpg")
		require.NoError(t, err)
		_, _ = part.Write([]byte("not really a jpeg"))
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, "/api/checkin/commit", &body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+signToken(t, usher))

		w := r.serve(req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(model.CommitAlready), decode(t, w)["outcome"])
		r.assertExpectations(t)
	})

	t.Run("multipart with bad guest id", func(t *testing.T) {
		r := setupTestRouter()
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("guestId", "nope"))
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, "/api/checkin/commit", &body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+signToken(t, usher))

		w := r.serve(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		r.checkin.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
	})
}

func TestCheckinHandler_ToggleAndStatus(t *testing.T) {
	t.Run("toggle forbidden for usher", func(t *testing.T) {
		r := setupTestRouter()
		id := uuid.New()
		r.checkin.On("Toggle", mock.Anything, usher, id, false).Return(nil, apperrors.ErrNotEventOwner).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/guests/"+id.String()+"/toggle-checkin", model.ToggleCheckinRequest{CheckedIn: false}, usher))
		assert.Equal(t, http.StatusForbidden, w.Code)
		r.assertExpectations(t)
	})

	t.Run("status", func(t *testing.T) {
		r := setupTestRouter()
		event := &model.Event{ID: uuid.New(), TotalGuests: 3, CheckedInGuests: 3}
		r.events.On("Get", mock.Anything, event.ID).Return(event, nil).Once()
		r.checkin.On("AllCheckedIn", mock.Anything, event.ID).Return(true, nil).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events/"+event.ID.String()+"/checkin-status", nil, usher))
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["allCheckedIn"])
		assert.Equal(t, float64(3), body["totalGuests"])
		r.assertExpectations(t)
	})
}

func TestGuestHandler(t *testing.T) {
	eventID := uuid.New()

	t.Run("import rejected with row errors", func(t *testing.T) {
		r := setupTestRouter()
		importErr := &service.ImportError{Rows: []service.RowError{{Line: 2, Message: "name is required"}}}
		r.guests.On("Import", mock.Anything, admin, eventID, mock.Anything).Return(nil, importErr).Once()

		req := createJSONHTTPRequest(t, http.MethodPost, "/api/events/"+eventID.String()+"/guests/import", "name\n,\n", admin)
		req.Header.Set("Content-Type", "text/csv")
		w := r.serve(req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		rows, ok := decode(t, w)["rows"].([]interface{})
		require.True(t, ok)
		assert.Len(t, rows, 1)
		r.assertExpectations(t)
	})

	t.Run("duplicate code", func(t *testing.T) {
		r := setupTestRouter()
		r.guests.On("Create", mock.Anything, admin, eventID, mock.AnythingOfType("model.CreateGuestRequest")).
			Return(nil, apperrors.ErrDuplicateCode).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/events/"+eventID.String()+"/guests", gin.H{"name": "Ada", "uniqueCode": "ADA001"}, admin))
		assert.Equal(t, http.StatusConflict, w.Code)
		r.assertExpectations(t)
	})

	t.Run("bulk delete needs ids", func(t *testing.T) {
		r := setupTestRouter()
		w := r.serve(createJSONHTTPRequest(t, http.MethodDelete, "/api/events/"+eventID.String()+"/guests", gin.H{"guestIds": []string{}}, admin))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("qr png", func(t *testing.T) {
		r := setupTestRouter()
		guest := &model.Guest{ID: uuid.New(), EventID: eventID, Name: "Ada Lovelace", UniqueCode: "ADA001"}
		r.guests.On("Get", mock.Anything, guest.ID).Return(guest, nil).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/guests/"+guest.ID.String()+"/qr.png?size=128", nil, usher))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "ada-lovelace-ADA001.png")
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
		r.assertExpectations(t)
	})
}

func TestExportHandler_GenerateBundle(t *testing.T) {
	event := &model.Event{ID: uuid.New(), Title: "Gala Dinner"}
	req := service.BundleRequest{EventID: event.ID, Format: service.BundlePDF}

	t.Run("needs confirmation", func(t *testing.T) {
		r := setupTestRouter()
		plan := &service.BundlePlan{Event: event, Format: service.BundlePDF, Guests: make([]*model.Guest, 600),
			RequiresConfirmation: true, Warning: "Large bundle"}
		r.bundles.On("Prepare", mock.Anything, admin, req).Return(plan, nil).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/generate-bundle", req, admin))
		assert.Equal(t, http.StatusConflict, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["requiresConfirmation"])
		assert.Equal(t, float64(600), body["guestCount"])
		r.bundles.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("too large", func(t *testing.T) {
		r := setupTestRouter()
		r.bundles.On("Prepare", mock.Anything, admin, req).Return(nil, apperrors.ErrBundleTooLarge).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/generate-bundle", req, admin))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["error"], "1000")
	})

	t.Run("streams the file", func(t *testing.T) {
		r := setupTestRouter()
		plan := &service.BundlePlan{Event: event, Format: service.BundlePDF, Guests: []*model.Guest{{ID: uuid.New()}}}
		r.bundles.On("Prepare", mock.Anything, admin, req).Return(plan, nil).Once()
		r.bundles.On("Write", mock.Anything, mock.Anything, plan).Run(func(args mock.Arguments) {
			_, _ = args.Get(1).(io.Writer).Write([]byte("%PDF-1.3"))
		}).Return(nil).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodPost, "/api/generate-bundle", req, admin))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="gala-dinner-qr-codes.pdf"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-1.3", w.Body.String())
		r.assertExpectations(t)
	})
}

func TestExportHandler_Analytics(t *testing.T) {
	event := &model.Event{ID: uuid.New(), Title: "Gala Dinner"}
	report := &model.Analytics{Summary: model.AnalyticsSummary{EventTitle: "Gala Dinner", TotalGuests: 2}}

	t.Run("unknown format", func(t *testing.T) {
		r := setupTestRouter()
		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events/"+event.ID.String()+"/analytics?format=docx", nil, admin))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		r.analytics.AssertNotCalled(t, "Report", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("json", func(t *testing.T) {
		r := setupTestRouter()
		r.analytics.On("Report", mock.Anything, admin, event.ID).Return(report, event, nil).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events/"+event.ID.String()+"/analytics", nil, admin))
		require.Equal(t, http.StatusOK, w.Code)
		summary, ok := decode(t, w)["summary"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(2), summary["totalGuests"])
		r.assertExpectations(t)
	})

	t.Run("csv download", func(t *testing.T) {
		r := setupTestRouter()
		r.analytics.On("Report", mock.Anything, admin, event.ID).Return(report, event, nil).Once()
		r.analytics.On("Export", mock.Anything, report, service.AnalyticsCSV).Return(nil).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events/"+event.ID.String()+"/analytics?format=csv", nil, admin))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="gala-dinner-analytics.csv"`, w.Header().Get("Content-Disposition"))
		r.assertExpectations(t)
	})

	t.Run("forbidden", func(t *testing.T) {
		r := setupTestRouter()
		r.analytics.On("Report", mock.Anything, usher, event.ID).Return(nil, nil, apperrors.ErrNotEventOwner).Once()

		w := r.serve(createJSONHTTPRequest(t, http.MethodGet, "/api/events/"+event.ID.String()+"/analytics", nil, usher))
		assert.Equal(t, http.StatusForbidden, w.Code)
		r.assertExpectations(t)
	})
}
