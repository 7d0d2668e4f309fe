// Package service implements the message provider gateways: a WhatsApp Cloud style HTTP
// provider and a simulated provider used when none is configured.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	integrationDomain "github.com/allisson/clinicops/internal/integration/domain"
	messagingDomain "github.com/allisson/clinicops/internal/messaging/domain"
)

// maxErrorBody bounds how much of a provider error response is kept.
const maxErrorBody = 512

// CredentialProvider hands out decrypted tenant credentials.
type CredentialProvider interface {
	Credential(ctx context.Context, tenantID uuid.UUID, kind integrationDomain.Kind) (*integrationDomain.Credential, error)
}

// HTTPProvider sends messages through a WhatsApp Cloud style API with each tenant's own
// phone-number id and access token.
type HTTPProvider struct {
	credentials CredentialProvider
	httpClient  *http.Client
	baseURL     string
	logger      *slog.Logger
}

// NewHTTPProvider creates an HTTPProvider posting to baseURL.
func NewHTTPProvider(
	credentials CredentialProvider,
	httpClient *http.Client,
	baseURL string,
	logger *slog.Logger,
) *HTTPProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPProvider{
		credentials: credentials,
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
	}
}

type sendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
	// BizOpaqueCallbackData comes back in delivery receipts.
	BizOpaqueCallbackData string `json:"biz_opaque_callback_data,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type templateBody struct {
	Name     string           `json:"name"`
	Language templateLanguage `json:"language"`
	Rendered string           `json:"rendered,omitempty"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers msg and returns the provider message id.
func (p *HTTPProvider) Send(ctx context.Context, msg *messagingDomain.OutboundMessage) (string, error) {
	credential, err := p.credentials.Credential(ctx, msg.TenantID, integrationDomain.KindMessaging)
	if err != nil {
		if errors.Is(err, integrationDomain.ErrIntegrationNotFound) {
			return "", messagingDomain.ErrProviderNotConfigured
		}
		return "", fmt.Errorf("%w: %v", messagingDomain.ErrProviderUnavailable, err)
	}

	body, err := json.Marshal(buildSendRequest(msg))
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", p.baseURL, url.PathEscape(credential.AccountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential.AccessToken})
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), tokenSource)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", messagingDomain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: status %d: %s", messagingDomain.ErrProviderUnavailable, resp.StatusCode,
			strings.TrimSpace(string(detail)))
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: invalid response: %v", messagingDomain.ErrProviderUnavailable, err)
	}
	if len(decoded.Messages) == 0 || decoded.Messages[0].ID == "" {
		return "", fmt.Errorf("%w: response carried no message id", messagingDomain.ErrProviderUnavailable)
	}

	p.logger.Debug("message accepted by provider",
		slog.String("message_id", msg.ID.String()),
		slog.String("provider_message_id", decoded.Messages[0].ID),
	)
	return decoded.Messages[0].ID, nil
}

func buildSendRequest(msg *messagingDomain.OutboundMessage) sendRequest {
	req := sendRequest{
		MessagingProduct:      "whatsapp",
		To:                    msg.Recipient,
		BizOpaqueCallbackData: msg.IdempotencyKey,
	}

	if msg.Classification == messagingDomain.ClassificationTemplated && msg.TemplateName != nil {
		language := ""
		if msg.TemplateLanguage != nil {
			language = *msg.TemplateLanguage
		}
		req.Type = "template"
		req.Template = &templateBody{
			Name:     *msg.TemplateName,
			Language: templateLanguage{Code: language},
			Rendered: msg.Payload,
		}
		return req
	}

	req.Type = "text"
	req.Text = &textBody{Body: msg.Payload}
	return req
}

// SimulatedProvider accepts every message without sending it.
type SimulatedProvider struct {
	logger *slog.Logger
}

// NewSimulatedProvider creates a SimulatedProvider.
func NewSimulatedProvider(logger *slog.Logger) *SimulatedProvider {
	return &SimulatedProvider{logger: logger}
}

// Send returns "simulated-{id}".
func (p *SimulatedProvider) Send(ctx context.Context, msg *messagingDomain.OutboundMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", messagingDomain.ErrProviderUnavailable, err)
	}
	p.logger.Info("simulated message send",
		slog.String("message_id", msg.ID.String()),
		slog.String("tenant_id", msg.TenantID.String()),
	)
	return "simulated-" + msg.ID.String(), nil
}
