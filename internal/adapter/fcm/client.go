// Package fcm implements the push transport on the Firebase Cloud Messaging
// HTTP v1 API. The client is explicitly constructed and injected; there is
// no ambient default app.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/auroralabs/aurora-alerts/internal/domain"
)

const (
	messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

	sendURLFormat  = "%s/v1/projects/%s/messages:send"
	topicURLFormat = "%s/iid/v1/%s/rel/topics/%s"
)

// Client sends pushes through FCM and manages topic relationships. In dry-run
// mode every call short-circuits with a synthetic success outcome and a log
// record; this is a first-class deployment mode, not a test hook.
type Client struct {
	projectID   string
	dryRun      bool
	httpClient  *http.Client
	logger      *slog.Logger
	sendBase    string // overridable in tests
	topicBase   string
	tokenSource oauth2.TokenSource
}

// NewClient builds an FCM client from a service-account credentials file.
// In dry-run mode no credentials are read and no network calls are made.
func NewClient(projectID, credentialsFile string, dryRun bool, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	c := &Client{
		projectID:  projectID,
		dryRun:     dryRun,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		sendBase:   "https://fcm.googleapis.com",
		topicBase:  "https://iid.googleapis.com",
	}
	if dryRun {
		return c, nil
	}

	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read fcm credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(creds, messagingScope)
	if err != nil {
		return nil, fmt.Errorf("parse fcm credentials: %w", err)
	}
	c.tokenSource = conf.TokenSource(context.Background())
	return c, nil
}

// SendBatch delivers messages one request each (the v1 API has no batch
// endpoint) and reports a per-message outcome. It never retries: sends are
// fire-once per job run. The returned error is non-nil only when the
// transport as a whole is unusable.
func (c *Client) SendBatch(ctx context.Context, messages []domain.Message) (domain.BatchResult, error) {
	if c.dryRun {
		c.logger.Info("dry run: skipping fcm send", "messages", len(messages))
		outcomes := make([]domain.SendOutcome, len(messages))
		for i := range outcomes {
			outcomes[i] = domain.SendOutcome{OK: true, MessageID: fmt.Sprintf("dry-run-%d", i)}
		}
		return domain.BatchResult{Outcomes: outcomes}, nil
	}

	result := domain.BatchResult{Outcomes: make([]domain.SendOutcome, len(messages))}
	for i, msg := range messages {
		id, err := c.send(ctx, msg)
		if err != nil {
			result.Outcomes[i] = domain.SendOutcome{Error: err.Error()}
			continue
		}
		result.Outcomes[i] = domain.SendOutcome{OK: true, MessageID: id}
	}

	c.logger.Info("fcm batch sent",
		"messages", len(messages),
		"success", result.SuccessCount(),
		"errors", result.FailureCount(),
	)
	if len(messages) > 0 && result.SuccessCount() == 0 {
		return result, &domain.TransportError{Op: "fcm send batch", Err: fmt.Errorf("all %d sends failed", len(messages))}
	}
	return result, nil
}

// v1 API request/response shapes, trimmed to the fields the engine uses.

type sendRequest struct {
	Message apiMessage `json:"message"`
}

type apiMessage struct {
	Token        string           `json:"token,omitempty"`
	Topic        string           `json:"topic,omitempty"`
	Notification *apiNotification `json:"notification,omitempty"`
}

type apiNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendResponse struct {
	Name string `json:"name"` // "projects/*/messages/{message_id}"
}

func (c *Client) send(ctx context.Context, msg domain.Message) (string, error) {
	api := apiMessage{
		Notification: &apiNotification{
			Title: msg.Notification.Title,
			Body:  msg.Notification.Body,
		},
	}
	switch msg.Channel {
	case domain.ChannelTopic:
		api.Topic = msg.Topic
	default:
		api.Token = msg.Token
	}

	payload, err := json.Marshal(sendRequest{Message: api})
	if err != nil {
		return "", fmt.Errorf("marshal fcm message: %w", err)
	}

	url := fmt.Sprintf(sendURLFormat, c.sendBase, c.projectID)
	body, err := c.doAuthorized(ctx, http.MethodPost, url, payload)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode fcm response: %w", err)
	}
	return resp.Name, nil
}

// SubscribeTopic binds a device token to a topic via the instance ID API.
func (c *Client) SubscribeTopic(ctx context.Context, token, topic string) error {
	if c.dryRun {
		c.logger.Info("dry run: skipping topic subscribe", "topic", topic)
		return nil
	}
	url := fmt.Sprintf(topicURLFormat, c.topicBase, token, topic)
	_, err := c.doAuthorized(ctx, http.MethodPost, url, nil)
	return err
}

// UnsubscribeTopic removes a device token from a topic.
func (c *Client) UnsubscribeTopic(ctx context.Context, token, topic string) error {
	if c.dryRun {
		c.logger.Info("dry run: skipping topic unsubscribe", "topic", topic)
		return nil
	}
	url := fmt.Sprintf(topicURLFormat, c.topicBase, token, topic)
	_, err := c.doAuthorized(ctx, http.MethodDelete, url, nil)
	return err
}

func (c *Client) doAuthorized(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokenSource != nil {
		tok, err := c.tokenSource.Token()
		if err != nil {
			return nil, &domain.TransportError{Op: "fcm auth", Err: err}
		}
		tok.SetAuthHeader(req)
	}
	// The IID topic API additionally requires this header.
	req.Header.Set("access_token_auth", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: method + " " + url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "read " + url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.TransportError{Op: method + " " + url, StatusCode: resp.StatusCode}
	}
	return body, nil
}
