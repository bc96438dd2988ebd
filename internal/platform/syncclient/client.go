// Package syncclient talks to the sync server: best-effort event delivery,
// an ordered retrying outbox, and record pulls for reconciliation.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

// DefaultTimeout bounds every request when no other timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is kept for logging.
const maxErrorBody = 4 << 10

// StatusError is returned by Send when the server answers with a non-2xx
// status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sync server returned %d: %s", e.Code, e.Body)
}

// Permanent reports whether retrying the same request can never succeed.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500 &&
		e.Code != http.StatusRequestTimeout && e.Code != http.StatusTooManyRequests
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithClock overrides the time source used to stamp envelopes.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client is the direct, unbuffered connection to the sync server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
	now     func() time.Time
}

func New(baseURL string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger.With().Str("component", "sync_client").Logger(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the server address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Envelope builds the wire event for data, stamped with the client clock.
func (c *Client) Envelope(t syncproto.EventType, data interface{}) (syncproto.Event, error) {
	return syncproto.NewEvent(t, data, c.now())
}

// Send POSTs evt to the server. A non-2xx answer is a *StatusError.
func (c *Client) Send(ctx context.Context, evt syncproto.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+syncproto.PathSync, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", evt.Type, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Sync delivers one event and reports whether the server accepted it.
// Failures are logged, never returned.
func (c *Client) Sync(ctx context.Context, t syncproto.EventType, data interface{}) bool {
	evt, err := c.Envelope(t, data)
	if err != nil {
		c.logger.Error().Err(err).Str("type", string(t)).Msg("error encoding sync event")
		return false
	}
	c.logger.Debug().Str("type", string(t)).Str("url", c.baseURL+syncproto.PathSync).Msg("syncing")
	if err := c.Send(ctx, evt); err != nil {
		c.logger.Error().Err(err).Str("type", string(t)).Msg("failed to sync")
		return false
	}
	c.logger.Info().Str("type", string(t)).Msg("synced")
	return true
}

// Publish is Sync; it lets the client stand in wherever a Publisher is
// expected.
func (c *Client) Publish(ctx context.Context, t syncproto.EventType, data interface{}) bool {
	return c.Sync(ctx, t, data)
}

// PatientRecords fetches the server's record list.
func (c *Client) PatientRecords(ctx context.Context) ([]patient.Record, error) {
	var resp syncproto.RecordsResponse
	if err := c.getJSON(ctx, syncproto.PathPatientRecords, &resp); err != nil {
		return nil, err
	}
	if resp.Records == nil {
		resp.Records = []patient.Record{}
	}
	return resp.Records, nil
}

// FetchPatientRecords is PatientRecords with failures logged and turned into
// an empty list, which callers must read as "unknown".
func (c *Client) FetchPatientRecords(ctx context.Context) []patient.Record {
	records, err := c.PatientRecords(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch patient records")
		return []patient.Record{}
	}
	c.logger.Debug().Int("count", len(records)).Msg("fetched patient records")
	return records
}

// FetchAppointments returns the server's appointment log, or an empty list
// on any failure.
func (c *Client) FetchAppointments(ctx context.Context) []syncproto.AppointmentEvent {
	var resp syncproto.AppointmentsResponse
	if err := c.getJSON(ctx, syncproto.PathAppointments, &resp); err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch appointments")
		return []syncproto.AppointmentEvent{}
	}
	if resp.Appointments == nil {
		return []syncproto.AppointmentEvent{}
	}
	return resp.Appointments
}

// Health queries the server's liveness endpoint.
func (c *Client) Health(ctx context.Context) (syncproto.HealthResponse, error) {
	var resp syncproto.HealthResponse
	err := c.getJSON(ctx, syncproto.PathHealth, &resp)
	return resp, err
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
