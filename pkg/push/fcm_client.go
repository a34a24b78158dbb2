package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	fcmScope    = "https://www.googleapis.com/auth/firebase.messaging"
	fcmEndpoint = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
)

// FCMClient sends messages through the FCM HTTP v1 API.
type FCMClient struct {
	http     *http.Client
	endpoint string
}

// NewFCMClient loads service account credentials from cfg.FCMCredentialsFile
// and returns a client whose requests carry a refreshed OAuth2 bearer token.
func NewFCMClient(ctx context.Context, cfg Config) (*FCMClient, error) {
	if cfg.FCMCredentialsFile == "" {
		return nil, fmt.Errorf("%w: FCMCredentialsFile is required", ErrInvalidConfig)
	}
	raw, err := os.ReadFile(cfg.FCMCredentialsFile)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, fcmScope)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	project := cfg.FCMProjectID
	if project == "" {
		project = creds.ProjectID
	}
	if project == "" {
		return nil, fmt.Errorf("%w: FCMProjectID is required", ErrInvalidConfig)
	}

	return NewFCMClientWithHTTP(oauth2.NewClient(ctx, creds.TokenSource), fmt.Sprintf(fcmEndpoint, project)), nil
}

// NewFCMClientWithHTTP uses an already authorized client and a full endpoint URL.
func NewFCMClientWithHTTP(client *http.Client, endpoint string) *FCMClient {
	return &FCMClient{http: client, endpoint: endpoint}
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

type fcmError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send posts msg to FCM. UNREGISTERED tokens and 404 responses map to ErrInvalidToken.
func (c *FCMClient) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(fcmRequest{Message: fcmMessage{
		Token:        msg.Token,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	}})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var fe fcmError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&fe)
	reason := fmt.Errorf("fcm error: %d %s", resp.StatusCode, strings.TrimSpace(fe.Error.Message))

	if resp.StatusCode == http.StatusNotFound || fe.Error.Status == "NOT_FOUND" {
		return errors.Join(ErrInvalidToken, reason)
	}
	for _, d := range fe.Error.Details {
		if d.ErrorCode == "UNREGISTERED" {
			return errors.Join(ErrInvalidToken, reason)
		}
	}
	return errors.Join(ErrFailedToSend, reason)
}
