package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/waxal-io/waxal/config"
)

// WhatsAppClient sends template messages through the WhatsApp Business API
type WhatsAppClient struct {
	config *config.WhatsAppConfig
	client *http.Client
}

// NewWhatsAppClient creates a new WhatsApp client
func NewWhatsAppClient(cfg *config.WhatsAppConfig) *WhatsAppClient {
	return &WhatsAppClient{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type waTemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type waTemplateComponent struct {
	Type       string                `json:"type"`
	Parameters []waTemplateParameter `json:"parameters"`
}

type waTemplatePayload struct {
	Name       string                `json:"name"`
	Language   map[string]string     `json:"language"`
	Components []waTemplateComponent `json:"components,omitempty"`
}

type waSendRequest struct {
	MessagingProduct string            `json:"messaging_product"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Template         waTemplatePayload `json:"template"`
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendWhatsApp sends one template message and reports the API outcome
func (w *WhatsAppClient) SendWhatsApp(ctx context.Context, receiver, templateName string, variables []string, ownerLogin string) SendResult {
	payload := waSendRequest{
		MessagingProduct: "whatsapp",
		To:               receiver,
		Type:             "template",
		Template: waTemplatePayload{
			Name:     templateName,
			Language: map[string]string{"code": w.config.TemplateLanguage},
		},
	}
	if len(variables) > 0 {
		params := make([]waTemplateParameter, 0, len(variables))
		for _, v := range variables {
			params = append(params, waTemplateParameter{Type: "text", Text: v})
		}
		payload.Template.Components = []waTemplateComponent{
			{Type: "body", Parameters: params},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(fmt.Errorf("failed to marshal WhatsApp request: %w", err))
	}

	url := fmt.Sprintf("%s/%s/%s/messages", w.config.APIDomain, w.config.APIVersion, w.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.config.AccessToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return failure(fmt.Errorf("failed to send WhatsApp request: %w", err))
	}
	defer resp.Body.Close()

	var out waSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return failure(fmt.Errorf("failed to decode WhatsApp response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || out.Error != nil {
		reason := fmt.Sprintf("whatsapp http status: %d", resp.StatusCode)
		if out.Error != nil {
			reason = fmt.Sprintf("%s (%d)", out.Error.Message, out.Error.Code)
		}
		return SendResult{Success: false, Error: reason}
	}
	if len(out.Messages) == 0 {
		return failure(fmt.Errorf("empty WhatsApp response"))
	}
	return SendResult{Success: true, MessageID: out.Messages[0].ID}
}

// SendSMS is not supported by the WhatsApp client
func (w *WhatsAppClient) SendSMS(ctx context.Context, sender, receiver, body string) SendResult {
	return failure(fmt.Errorf("sms is not supported by the WhatsApp client"))
}
