package mittfortum

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type OptionFunc func(*Client) error

func WithAuthBase(authBase string) OptionFunc {
	return func(client *Client) error {
		if authBase != "" {
			client.authBase = strings.TrimRight(authBase, "/")
		}
		return nil
	}
}

func WithAPIBase(apiBase string) OptionFunc {
	return func(client *Client) error {
		if apiBase != "" {
			client.apiBase = strings.TrimRight(apiBase, "/")
		}
		return nil
	}
}

func WithHTTPClient(httpClient *http.Client) OptionFunc {
	return func(client *Client) error {
		client.httpClient = httpClient
		return nil
	}
}

func WithAddress(streetAddress, city string) OptionFunc {
	return func(client *Client) error {
		client.streetAddress = streetAddress
		client.city = city
		return nil
	}
}

func WithResolution(resolution string) OptionFunc {
	return func(client *Client) error {
		r, err := ParseResolution(resolution)
		if err != nil {
			return err
		}
		client.resolution = r
		return nil
	}
}

func WithClock(now func() time.Time) OptionFunc {
	return func(client *Client) error {
		client.now = now
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(client *Client) error {
		client.logger = logger
		return nil
	}
}
