package mittfortum

import (
	"strings"
	"time"
)

type Resolution string

const (
	RESOLUTION_HOURLY  Resolution = "hourly"
	RESOLUTION_DAILY   Resolution = "daily"
	RESOLUTION_MONTHLY Resolution = "monthly"
)

func ParseResolution(value string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(value))); r {
	case RESOLUTION_HOURLY, RESOLUTION_DAILY, RESOLUTION_MONTHLY:
		return r, nil
	default:
		return "", configurationError("unknown resolution %q", value)
	}
}

// From returns the start of the query window ending at now.
func (r Resolution) From(now time.Time) time.Time {
	switch r {
	case RESOLUTION_HOURLY:
		return now.Add(-time.Hour)
	case RESOLUTION_DAILY:
		return now.AddDate(0, 0, -1)
	default:
		// first day of the previous month, same time of day
		return time.Date(now.Year(), now.Month()-1, 1, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), now.Location())
	}
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type consumptionRequest struct {
	From          string     `json:"from"`
	To            string     `json:"to"`
	Resolution    Resolution `json:"resolution"`
	PostalAddress string     `json:"postalAddress"`
	PostOffice    string     `json:"postOffice"`
}

// ConsumptionEntry is one period of metered consumption.
type ConsumptionEntry struct {
	Value       float64  `json:"value"`
	Cost        float64  `json:"cost"`
	Price       *float64 `json:"price,omitempty"`
	Temperature *float64 `json:"temp,omitempty"`
	DateTime    string   `json:"dateTime"`
}

type Consumption []ConsumptionEntry

func (c Consumption) First() (ConsumptionEntry, bool) {
	if len(c) == 0 {
		return ConsumptionEntry{}, false
	}
	return c[0], true
}
