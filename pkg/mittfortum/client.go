package mittfortum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAuthBase = "https://retail-lisa-eu-auth.herokuapp.com"
	defaultAPIBase  = "https://retail-lisa-eu-prd-energyflux.herokuapp.com"
	requestTimeout  = 30 * time.Second
	expiryMargin    = 30 * time.Second
)

type Reader interface {
	Login(ctx context.Context) error
	GetConsumption(ctx context.Context) (Consumption, error)
}

type Client struct {
	sync.Mutex

	authBase      string
	apiBase       string
	username      string
	password      string
	customerID    string
	meteringPoint string
	resolution    Resolution
	streetAddress string
	city          string

	token        string
	tokenExpires *time.Time

	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

func NewClient(username, password, customerID, meteringPoint string, opts ...OptionFunc) (*Client, error) {
	if username == "" || password == "" {
		return nil, configurationError("missing username or password")
	}
	if customerID == "" || meteringPoint == "" {
		return nil, configurationError("missing customer id or metering point")
	}
	client := &Client{
		authBase:      defaultAuthBase,
		apiBase:       defaultAPIBase,
		username:      username,
		password:      password,
		customerID:    customerID,
		meteringPoint: meteringPoint,
		resolution:    RESOLUTION_HOURLY,
		httpClient:    &http.Client{Timeout: requestTimeout},
		now:           time.Now,
		logger:        zap.NewNop(),
	}
	for _, o := range opts {
		if err := o(client); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func (c *Client) Resolution() Resolution {
	return c.resolution
}

func (c *Client) Login(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authBase+"/api/login", strings.NewReader(form.Encode()))
	if err != nil {
		return &LoginError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &LoginError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &LoginError{StatusCode: resp.StatusCode}
	}
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return &LoginError{Err: err}
	}
	if lr.AccessToken == "" {
		return &LoginError{}
	}

	c.token = lr.AccessToken
	c.tokenExpires = nil
	if exp, err := tokenExpiry(lr.AccessToken); err == nil {
		c.tokenExpires = exp
	}
	c.logger.Debug("mittfortum login ok", zap.Timep("expires", c.tokenExpires))
	return nil
}

func (c *Client) tokenValid() bool {
	if c.token == "" {
		return false
	}
	if c.tokenExpires == nil {
		return true
	}
	return c.now().Add(expiryMargin).Before(*c.tokenExpires)
}

// GetConsumption queries the metering point for the configured resolution window ending now.
func (c *Client) GetConsumption(ctx context.Context) (Consumption, error) {
	c.Lock()
	defer c.Unlock()

	if !c.tokenValid() {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	now := c.now()
	body, err := json.Marshal(consumptionRequest{
		From:          c.resolution.From(now).Format(time.RFC3339),
		To:            now.Format(time.RFC3339),
		Resolution:    c.resolution,
		PostalAddress: c.streetAddress,
		PostOffice:    c.city,
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/api/consumption/customer/%s/meteringPoint/%s", c.apiBase,
		url.PathEscape(c.customerID), url.PathEscape(c.meteringPoint))

	payload, err := c.post(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &InvalidResponseError{Reason: "empty response from API"}
	}
	var consumption Consumption
	if err := json.Unmarshal(payload, &consumption); err != nil {
		return nil, &InvalidResponseError{Reason: "invalid JSON in response", Err: err}
	}
	return consumption, nil
}

// post sends an authorized JSON request, renewing the session once on 403.
func (c *Client) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	status, payload, err := c.doPost(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusForbidden {
		c.logger.Info("mittfortum session expired, renewing login")
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		status, payload, err = c.doPost(ctx, endpoint, body)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		c.logger.Error("mittfortum unexpected status code", zap.Int("status", status))
		return nil, &UnexpectedStatusCodeError{StatusCode: status}
	}
	return payload, nil
}

func (c *Client) doPost(ctx context.Context, endpoint string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", endpoint, err)
	}
	return resp.StatusCode, payload, nil
}

// ensure interface compliance
var _ Reader = (*Client)(nil)
