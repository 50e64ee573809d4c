package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// fcmRequest is the legacy FCM HTTP API request body.
type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// fcmResponse carries the per-token results. Error "NotRegistered" or
// "InvalidRegistration" marks a dead token.
type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// FCMClient delivers push notifications through Firebase Cloud Messaging.
type FCMClient struct {
	http     *resty.Client
	endpoint string
	logger   *zap.Logger
}

// NewFCMClient creates an FCM client authorized with the server key.
func NewFCMClient(serverKey, endpoint string, logger *zap.Logger) *FCMClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Authorization", "key="+serverKey).
		SetHeader("Content-Type", "application/json")
	return &FCMClient{http: client, endpoint: endpoint, logger: logger}
}

// Send pushes a notification to the given device tokens and returns the
// tokens FCM reports as dead so the caller can prune them.
func (c *FCMClient) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (dead []string, err error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var out fcmResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(fcmRequest{
			RegistrationIDs: tokens,
			Notification:    fcmNotification{Title: title, Body: body},
			Data:            data,
		}).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("fcm request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fcm responded %d", resp.StatusCode())
	}

	for i, r := range out.Results {
		if i >= len(tokens) {
			break
		}
		if r.Error == "NotRegistered" || r.Error == "InvalidRegistration" {
			dead = append(dead, tokens[i])
		}
	}
	c.logger.Debug("fcm batch sent",
		zap.Int("success", out.Success),
		zap.Int("failure", out.Failure),
		zap.Int("dead_tokens", len(dead)))
	return dead, nil
}
