package stecagrid

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	measurementsPath = "/measurements.xml"
	deviceNameMarker = "StecaGrid"
)

var ErrNotStecaGrid = errors.New("device is not a StecaGrid inverter")

type Reader interface {
	ValidateConnection(ctx context.Context) (bool, error)
	GetInfo(ctx context.Context) (*DeviceInfo, error)
	GetMeasurements(ctx context.Context) (Measurements, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(host string, port uint, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("stecagrid host is required")
	}
	if port == 0 {
		port = 80
	}
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// NewClientWithBaseURL is used against fake servers.
func NewClientWithBaseURL(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) ValidateConnection(ctx context.Context) (bool, error) {
	doc, err := c.fetch(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(doc.Device.Name, deviceNameMarker), nil
}

func (c *Client) GetInfo(ctx context.Context) (*DeviceInfo, error) {
	doc, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(doc.Device.Name, deviceNameMarker) {
		return nil, fmt.Errorf("%w: %q", ErrNotStecaGrid, doc.Device.Name)
	}
	return &DeviceInfo{
		Name:         doc.Device.Name,
		Type:         doc.Device.Type,
		Serial:       doc.Device.Serial,
		NominalPower: doc.Device.NominalPower,
		NetBiosName:  doc.Device.NetBiosName,
	}, nil
}

func (c *Client) GetMeasurements(ctx context.Context) (Measurements, error) {
	doc, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	measurements := make(Measurements, 0, len(doc.Device.Measurements))
	for _, m := range doc.Device.Measurements {
		if m.Type == "" {
			continue
		}
		measurements = append(measurements, Measurement{
			Type:  m.Type,
			Value: m.Value,
			Unit:  m.Unit,
		})
	}
	c.logger.Debug("stecagrid measurements", zap.Int("count", len(measurements)))
	return measurements, nil
}

func (c *Client) fetch(ctx context.Context) (*measurementsDocument, error) {
	endpoint := c.baseURL + measurementsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var doc measurementsDocument
	if err := xml.NewDecoder(bytes.NewReader(payload)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return &doc, nil
}

// ensure interface compliance
var _ Reader = (*Client)(nil)
