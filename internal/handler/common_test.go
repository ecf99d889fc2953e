package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"event-checkin/internal/model"
	"event-checkin/internal/service/mocks"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var InvalidJSON = `{"invalid": json}`

type testRouter struct {
	engine    *gin.Engine
	events    *mocks.EventServiceMock
	guests    *mocks.GuestServiceMock
	checkin   *mocks.CheckinServiceMock
	bundles   *mocks.BundleServiceMock
	analytics *mocks.AnalyticsServiceMock
}

func setupTestRouter() *testRouter {
	gin.SetMode(gin.TestMode)
	r := &testRouter{
		events:    mocks.NewEventServiceMock(),
		guests:    mocks.NewGuestServiceMock(),
		checkin:   mocks.NewCheckinServiceMock(),
		bundles:   mocks.NewBundleServiceMock(),
		analytics: mocks.NewAnalyticsServiceMock(),
	}
	r.engine = NewRouter(NewAuthenticator(testSecret), nil, Handlers{
		Events:     NewEventHandler(r.events),
		Guests:     NewGuestHandler(r.guests),
		Checkin:    NewCheckinHandler(r.checkin, r.events),
		Sessions:   NewScannerSessionHandler(nil),
		Invitation: NewInvitationHandler(nil),
		Export:     NewExportHandler(r.bundles, r.analytics),
	})
	return r
}

func (r *testRouter) assertExpectations(t *testing.T) {
	r.events.AssertExpectations(t)
	r.guests.AssertExpectations(t)
	r.checkin.AssertExpectations(t)
	r.bundles.AssertExpectations(t)
	r.analytics.AssertExpectations(t)
}

func signToken(t *testing.T, user *model.AuthUser) string {
	t.Helper()
	return signTokenWith(t, testSecret, user)
}

func signTokenWith(t *testing.T, secret string, user *model.AuthUser) string {
	t.Helper()
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	claims.UserMetadata.Name = user.Name
	claims.AppMetadata.Role = string(user.Role)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// create HTTP request with JSON body, authenticated as user when it is not nil
func createJSONHTTPRequest(t *testing.T, method, url string, data interface{}, user *model.AuthUser) *http.Request {
	t.Helper()
	var body []byte
	switch v := data.(type) {
	case nil:
	case string:
		body = []byte(v)
	default:
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+signToken(t, user))
	}
	return req
}

func (r *testRouter) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

var (
	admin = &model.AuthUser{ID: "owner-1", Email: "olivia@example.com", Name: "Olivia", Role: model.RoleAdmin}
	usher = &model.AuthUser{ID: "usher-1", Email: "uma@example.com", Name: "Uma", Role: model.RoleUsher}
)
