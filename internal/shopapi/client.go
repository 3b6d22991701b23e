// Package shopapi is the HTTP client for the shop backend. The backend owns
// all business logic; this client only moves data and classifies failures.
package shopapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// Client calls the shop backend. The zero credential state is an error, not
// an empty result: every authenticated call fails with ErrNoCredential until
// a token source is attached via WithToken.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	customerID int64

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs an unauthenticated base client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching for vehicle list reads.
// Slot and appointment lists are never cached: their freshness is the whole
// point of the live channel.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// WithToken returns a client bound to one customer's credential. The
// transport and cache are shared with the base client, so credential
// attachment stays in exactly one place.
func (c *Client) WithToken(customerID int64, ts oauth2.TokenSource) *Client {
	bound := *c
	bound.customerID = customerID
	bound.tokens = ts
	return &bound
}

// Me returns the authenticated customer, and doubles as a credential check.
func (c *Client) Me(ctx context.Context) (*Customer, error) {
	var cust Customer
	if err := c.doGet(ctx, c.baseURL+"/api/v1/me", &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

// ListVehicles returns the customer's vehicles.
func (c *Client) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	endpoint := c.baseURL + "/api/v1/vehicles"
	cacheKey := c.vehiclesCacheKey()
	var wrap struct {
		Vehicles []Vehicle `json:"vehicles"`
	}

	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Vehicles, nil
	}

	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Vehicles, nil
}

// CreateVehicle registers a vehicle and invalidates the cached list.
func (c *Client) CreateVehicle(ctx context.Context, in VehicleInput) (*Vehicle, error) {
	var created Vehicle
	if err := c.doPost(ctx, c.baseURL+"/api/v1/vehicles", in, &created, nil); err != nil {
		return nil, err
	}
	c.dropCache(ctx, c.vehiclesCacheKey())
	return &created, nil
}

// ListSlots returns the available slots for a date and service type, ordered
// by start time by the backend.
func (c *Client) ListSlots(ctx context.Context, date, serviceType string) ([]Slot, error) {
	endpoint := fmt.Sprintf("%s/api/v1/slots?date=%s", c.baseURL, url.QueryEscape(date))
	if serviceType != "" {
		endpoint += "&service_type=" + url.QueryEscape(serviceType)
	}
	var wrap struct {
		Slots []Slot `json:"slots"`
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	return wrap.Slots, nil
}

// CreateAppointment submits a booking. Each submission carries a fresh
// idempotency key so a retried request cannot double-book.
func (c *Client) CreateAppointment(ctx context.Context, req AppointmentRequest) (*Appointment, error) {
	var created Appointment
	headers := map[string]string{"Idempotency-Key": uuid.New().String()}
	if err := c.doPost(ctx, c.baseURL+"/api/v1/appointments", req, &created, headers); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListAppointments returns the customer's appointments, optionally filtered
// by status.
func (c *Client) ListAppointments(ctx context.Context, status string) ([]Appointment, error) {
	endpoint := c.baseURL + "/api/v1/appointments"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var wrap struct {
		Appointments []Appointment `json:"appointments"`
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	return wrap.Appointments, nil
}

// CancelAppointment cancels a pending appointment.
func (c *Client) CancelAppointment(ctx context.Context, id int64) error {
	endpoint := fmt.Sprintf("%s/api/v1/appointments/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	if err := c.addAuth(req); err != nil {
		return err
	}
	return c.do(req, nil)
}

// HealthCheck checks if the backend is reachable. No credential required.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapTransport("health check", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) vehiclesCacheKey() string {
	return fmt.Sprintf("shopapi:vehicles:%d", c.customerID)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) dropCache(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, key).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	if err := c.addAuth(req); err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body, out any, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if err := c.addAuth(req); err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapTransport(req.Method+" "+req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return newError(resp.StatusCode, body.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addAuth(req *http.Request) error {
	if c.tokens == nil {
		return ErrNoCredential
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("fetch token: %v: %w", err, ErrNoCredential)
	}
	if !tok.Valid() {
		return ErrNoCredential
	}
	tok.SetAuthHeader(req)
	return nil
}
