package mittfortum_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/berfenger/energy2mqtt/pkg/mittfortum"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type fakePortal struct {
	server       *httptest.Server
	logins       atomic.Int32
	queries      atomic.Int32
	tokens       []string
	forbidFirst  bool
	status       int
	body         string
	lastRequest  map[string]any
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{
		tokens: []string{"token-1", "token-2", "token-3"},
		status: http.StatusOK,
		body:   `[{"value": 1.84, "cost": 2.31, "temp": -3.5, "dateTime": "2024-03-15T09:00:00.000+01:00"}]`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = r.ParseForm()
		if r.PostForm.Get("username") != "user@example.com" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := int(p.logins.Add(1)) - 1
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": p.tokens[n%len(p.tokens)]})
	})
	mux.HandleFunc("/api/consumption/customer/C123/meteringPoint/MP456", func(w http.ResponseWriter, r *http.Request) {
		n := p.queries.Add(1)
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&p.lastRequest)
		if p.forbidFirst && n == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("Authorization") == "" || r.Header.Get("Authorization") == "Bearer " {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(p.status)
		_, _ = w.Write([]byte(p.body))
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) client(t *testing.T, opts ...mittfortum.OptionFunc) *mittfortum.Client {
	opts = append([]mittfortum.OptionFunc{
		mittfortum.WithAuthBase(p.server.URL),
		mittfortum.WithAPIBase(p.server.URL),
		mittfortum.WithHTTPClient(p.server.Client()),
		mittfortum.WithAddress("Storgatan 1", "Stockholm"),
		mittfortum.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	client, err := mittfortum.NewClient("user@example.com", "secret", "C123", "MP456", opts...)
	require.NoError(t, err)
	return client
}

func TestGetConsumption(t *testing.T) {

	require := require.New(t)

	portal := newFakePortal(t)
	client := portal.client(t, mittfortum.WithResolution("daily"))

	data, err := client.GetConsumption(context.Background())
	require.NoError(err)

	first, ok := data.First()
	require.True(ok)
	require.Equal(1.84, first.Value)
	require.Equal(2.31, first.Cost)
	require.NotNil(first.Temperature)
	require.Equal(-3.5, *first.Temperature)
	require.Equal("2024-03-15T09:00:00.000+01:00", first.DateTime)

	require.EqualValues(1, portal.logins.Load(), "login before first query")
	require.Equal("2024-03-14T10:30:00Z", portal.lastRequest["from"])
	require.Equal("2024-03-15T10:30:00Z", portal.lastRequest["to"])
	require.Equal("daily", portal.lastRequest["resolution"])
	require.Equal("Storgatan 1", portal.lastRequest["postalAddress"])
	require.Equal("Stockholm", portal.lastRequest["postOffice"])

	// opaque token is reused
	_, err = client.GetConsumption(context.Background())
	require.NoError(err)
	require.EqualValues(1, portal.logins.Load())
}

func TestRenewSessionOnForbidden(t *testing.T) {

	portal := newFakePortal(t)
	portal.forbidFirst = true
	client := portal.client(t)

	_, err := client.GetConsumption(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, portal.logins.Load())
	assert.EqualValues(t, 2, portal.queries.Load())
}

func TestUnexpectedStatusCode(t *testing.T) {

	portal := newFakePortal(t)
	portal.status = http.StatusInternalServerError
	client := portal.client(t)

	_, err := client.GetConsumption(context.Background())

	var statusErr *mittfortum.UnexpectedStatusCodeError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.ErrorIs(t, err, mittfortum.ErrAPI)
}

func TestInvalidResponse(t *testing.T) {

	assert := assert.New(t)

	portal := newFakePortal(t)
	client := portal.client(t)

	portal.body = ""
	_, err := client.GetConsumption(context.Background())
	var invalid *mittfortum.InvalidResponseError
	assert.ErrorAs(err, &invalid)
	assert.ErrorIs(err, mittfortum.ErrAPI)

	portal.body = "{not json"
	_, err = client.GetConsumption(context.Background())
	assert.ErrorAs(err, &invalid)
	assert.Contains(err.Error(), "invalid JSON")
}

func TestLoginFailure(t *testing.T) {

	portal := newFakePortal(t)
	client, err := mittfortum.NewClient("user@example.com", "wrong", "C123", "MP456",
		mittfortum.WithAuthBase(portal.server.URL), mittfortum.WithAPIBase(portal.server.URL))
	require.NoError(t, err)

	err = client.Login(context.Background())
	assert.ErrorIs(t, err, mittfortum.ErrLogin)

	_, err = client.GetConsumption(context.Background())
	assert.ErrorIs(t, err, mittfortum.ErrLogin)
	assert.EqualValues(t, 0, portal.queries.Load())
}

func TestExpiredJWTTriggersLogin(t *testing.T) {

	portal := newFakePortal(t)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": fixedNow.Add(-time.Minute).Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	valid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": fixedNow.Add(time.Hour).Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	portal.tokens = []string{expired, valid}

	client := portal.client(t)

	_, err = client.GetConsumption(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, portal.logins.Load())

	// the stored token is already expired, so the next query logs in again
	_, err = client.GetConsumption(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, portal.logins.Load())

	_, err = client.GetConsumption(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, portal.logins.Load())
}

func TestConfigurationErrors(t *testing.T) {

	assert := assert.New(t)

	_, err := mittfortum.NewClient("", "secret", "C123", "MP456")
	assert.ErrorIs(err, mittfortum.ErrConfiguration)

	_, err = mittfortum.NewClient("user", "secret", "", "MP456")
	assert.ErrorIs(err, mittfortum.ErrConfiguration)

	_, err = mittfortum.NewClient("user", "secret", "C123", "MP456", mittfortum.WithResolution("weekly"))
	assert.ErrorIs(err, mittfortum.ErrConfiguration)
}

func TestResolutionWindow(t *testing.T) {

	assert := assert.New(t)

	now := time.Date(2024, 1, 20, 8, 0, 0, 0, time.UTC)
	assert.Equal(time.Date(2024, 1, 20, 7, 0, 0, 0, time.UTC), mittfortum.RESOLUTION_HOURLY.From(now))
	assert.Equal(time.Date(2024, 1, 19, 8, 0, 0, 0, time.UTC), mittfortum.RESOLUTION_DAILY.From(now))
	assert.Equal(time.Date(2023, 12, 1, 8, 0, 0, 0, time.UTC), mittfortum.RESOLUTION_MONTHLY.From(now))
}
