package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Gateway is the out-of-band messaging service that owns subscriptions.
type Gateway interface {
	Subscribe(ctx context.Context, phoneNumber string) error
	Unsubscribe(ctx context.Context, phoneNumber string) error
}

// HTTPGateway talks to a subscription service exposing
// POST /subscribe and POST /unsubscribe.
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (g *HTTPGateway) Subscribe(ctx context.Context, phoneNumber string) error {
	return g.post(ctx, "/subscribe", phoneNumber)
}

func (g *HTTPGateway) Unsubscribe(ctx context.Context, phoneNumber string) error {
	return g.post(ctx, "/unsubscribe", phoneNumber)
}

func (g *HTTPGateway) post(ctx context.Context, path, phoneNumber string) error {
	body, err := json.Marshal(map[string]string{"phoneNumber": phoneNumber})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

// messageCreator is the slice of the Twilio REST API the gateway needs.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway has no server-side subscription list; a subscription is
// confirmed by successfully texting the number, and the same goes for
// unsubscribing.
type TwilioGateway struct {
	api        messageCreator
	fromNumber string
}

func NewTwilioGateway(accountSID, authToken, fromNumber string) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioGateway{api: client.Api, fromNumber: fromNumber}
}

func (g *TwilioGateway) Subscribe(ctx context.Context, phoneNumber string) error {
	return g.send(ctx, phoneNumber, "You are now subscribed to severe earthquake alerts. Reply STOP to opt out.")
}

func (g *TwilioGateway) Unsubscribe(ctx context.Context, phoneNumber string) error {
	return g.send(ctx, phoneNumber, "You have been unsubscribed from severe earthquake alerts.")
}

func (g *TwilioGateway) send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(g.fromNumber)
	params.SetBody(body)

	msg, err := g.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}
	if msg != nil && msg.Sid != nil {
		slog.Debug("sms sent", "sid", *msg.Sid)
	}
	return nil
}
