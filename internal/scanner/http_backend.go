package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"event-checkin/internal/model"
	apperrors "event-checkin/pkg/app_errors"

	"github.com/google/uuid"
)

// HTTPBackend calls the check-in server API with a bearer token.
type HTTPBackend struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPBackend(baseURL, token string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the status code back onto the shared error values.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case http.StatusForbidden:
		return apperrors.ErrNotEventOwner
	case http.StatusNotFound:
		return apperrors.ErrGuestNotFound
	case http.StatusConflict:
		return apperrors.ErrScannerBusy
	case http.StatusTooManyRequests:
		return apperrors.ErrScanCooldown
	case http.StatusServiceUnavailable:
		return apperrors.ErrStorageUnavailable
	}
	return nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (b *HTTPBackend) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	return b.do(ctx, method, path, "application/json", body, out)
}

func (b *HTTPBackend) AllCheckedIn(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var status struct {
		AllCheckedIn bool `json:"allCheckedIn"`
	}
	err := b.doJSON(ctx, http.MethodGet, "/api/events/"+eventID.String()+"/checkin-status", nil, &status)
	return status.AllCheckedIn, err
}

func (b *HTTPBackend) StartSession(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error) {
	var session model.ScannerSession
	err := b.doJSON(ctx, http.MethodPost, "/api/scanner-sessions", model.StartSessionRequest{EventID: eventID}, &session)
	return session.ID, err
}

func (b *HTTPBackend) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	return b.doJSON(ctx, http.MethodPost, "/api/scanner-sessions/"+sessionID.String()+"/end", nil, nil)
}

func (b *HTTPBackend) Scan(ctx context.Context, req model.ScanRequest) (*model.ScanResult, error) {
	var result model.ScanResult
	if err := b.doJSON(ctx, http.MethodPost, "/api/checkin/scan", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (b *HTTPBackend) Commit(ctx context.Context, guestID uuid.UUID, sessionID *uuid.UUID, photo io.Reader) (*model.CommitResult, error) {
	var result model.CommitResult
	if photo == nil {
		in := map[string]interface{}{"guestId": guestID, "sessionId": sessionID}
		if err := b.doJSON(ctx, http.MethodPost, "/api/checkin/commit", in, &result); err != nil {
			return nil, err
		}
		return &result, nil
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("guestId", guestID.String())
	if sessionID != nil {
		_ = form.WriteField("sessionId", sessionID.String())
	}
	part, err := form.CreateFormFile("photo", "photo.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, photo); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	if err := b.do(ctx, http.MethodPost, "/api/checkin/commit", form.FormDataContentType(), &buf, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
