package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"event-checkin/config"
	apperrors "event-checkin/pkg/app_errors"
)

// WhatsAppClient sends messages through the WhatsApp Business Cloud API.
type WhatsAppClient interface {
	Enabled() bool
	SendText(ctx context.Context, to, body string) (string, error)
	SendImage(ctx context.Context, to, link, caption string) (string, error)
}

type WhatsAppClientImpl struct {
	httpClient    *http.Client
	apiBase       string
	phoneNumberID string
	accessToken   string
}

func NewWhatsAppClient(cfg config.WhatsAppConfig, httpClient *http.Client) WhatsAppClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &WhatsAppClientImpl{
		httpClient:    httpClient,
		apiBase:       strings.TrimRight(cfg.APIBase, "/"),
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
	}
}

func (c *WhatsAppClientImpl) Enabled() bool {
	return c.phoneNumberID != "" && c.accessToken != ""
}

type waText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type waImage struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type waMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             *waText  `json:"text,omitempty"`
	Image            *waImage `json:"image,omitempty"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *WhatsAppClientImpl) SendText(ctx context.Context, to, body string) (string, error) {
	return c.send(ctx, waMessage{
		To:   to,
		Type: "text",
		Text: &waText{Body: body},
	})
}

func (c *WhatsAppClientImpl) SendImage(ctx context.Context, to, link, caption string) (string, error) {
	return c.send(ctx, waMessage{
		To:    to,
		Type:  "image",
		Image: &waImage{Link: link, Caption: caption},
	})
}

func (c *WhatsAppClientImpl) send(ctx context.Context, msg waMessage) (string, error) {
	if !c.Enabled() {
		return "", apperrors.ErrMessagingUnavailable
	}

	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"
	msg.To = NormalizePhone(msg.To)

	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiBase, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var out waResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("whatsapp response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || out.Error != nil {
		if out.Error != nil {
			return "", fmt.Errorf("whatsapp api error %d: %s", out.Error.Code, out.Error.Message)
		}
		return "", fmt.Errorf("whatsapp api status %d", resp.StatusCode)
	}
	if len(out.Messages) == 0 {
		return "", fmt.Errorf("whatsapp api returned no message id")
	}
	return out.Messages[0].ID, nil
}

// NormalizePhone keeps digits only; the Cloud API expects the number with country code
// and no leading plus.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
