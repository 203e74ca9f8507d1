// Package tms talks to the external regulatory transfer matching system.
package tms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dErrors "fedoffice/pkg/domain-errors"
)

// Client submits accepted transfers to the regulatory endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// submitResponse accepts either identifier field the remote system returns.
type submitResponse struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
}

// SubmitTransfer posts the export payload and returns the identifier the
// external system assigned.
func (c *Client) SubmitTransfer(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/transfers", bytes.NewReader(payload))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to build export request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "export request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read export response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", dErrors.Newf(dErrors.CodeUnavailable, "export rejected with status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed submitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to decode export response")
	}
	externalID := parsed.ExternalID
	if externalID == "" {
		externalID = parsed.ID
	}
	if externalID == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "export response carries no identifier")
	}
	return externalID, nil
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return fmt.Sprintf("%s...", body[:limit])
}
