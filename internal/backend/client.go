// Package backend talks to the fleet backend: the REST endpoints for driver locations,
// driver status and proof of delivery, and the object storage for delivery attachments.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/models"
)

const (
	locationsPath = "/rest/v1/driver_locations"
	statusPath    = "/rest/v1/rpc/set_driver_active"
	podPath       = "/rest/v1/proof_of_delivery"
	storagePath   = "/storage/v1/object/"
	publicPath    = "/storage/v1/object/public/"
	healthPath    = "/rest/v1/"

	// PODBucket holds proof-of-delivery attachments.
	PODBucket = "pod"

	maxErrorBody = 4 << 10
)

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Client is an HTTP client for the backend API.
type Client struct {
	baseURL    string
	apiKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type locationRow struct {
	DriverID   string    `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy"`
	Speed      *float64  `json:"speed"`
	Heading    *float64  `json:"heading"`
	RecordedAt time.Time `json:"recorded_at"`
}

func newLocationRow(item models.QueuedSample) locationRow {
	return locationRow{
		DriverID:   item.DriverID,
		Latitude:   item.Latitude,
		Longitude:  item.Longitude,
		Accuracy:   item.Accuracy,
		Speed:      item.Speed,
		Heading:    item.Heading,
		RecordedAt: item.CapturedAt,
	}
}

// Send inserts one location sample for the driver.
func (c *Client) Send(ctx context.Context, token string, item models.QueuedSample) error {
	return c.postJSON(ctx, token, locationsPath, newLocationRow(item))
}

// SetDriverActive publishes whether the driver is being tracked.
func (c *Client) SetDriverActive(ctx context.Context, token, driverID string, active bool) error {
	body := struct {
		DriverID string `json:"driver_id"`
		IsActive bool   `json:"is_active"`
	}{DriverID: driverID, IsActive: active}

	return c.postJSON(ctx, token, statusPath, body)
}

// UploadBlob stores data under path in the proof-of-delivery bucket and returns its public URL.
func (c *Client) UploadBlob(ctx context.Context, token, path, contentType string, data []byte) (string, error) {
	object := PODBucket + "/" + escapePath(path)

	req, err := c.newRequest(ctx, token, http.MethodPost, storagePath+object, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Upsert", "true")

	if err = c.do(req); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}

	return c.baseURL + publicPath + object, nil
}

// InsertProofOfDelivery stores the delivery record.
func (c *Client) InsertProofOfDelivery(ctx context.Context, token string, record models.ProofOfDelivery) error {
	return c.postJSON(ctx, token, podPath, record)
}

// Ping reports whether the backend answers. Any response below 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

func (c *Client) postJSON(ctx context.Context, token, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := c.newRequest(ctx, token, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, token, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	return req, nil
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

func escapePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}

	return strings.Join(parts, "/")
}
