package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/techrank/internal/domain/model"
)

// ErrRequest is returned when the server cannot be reached or answers with
// an unexpected body.
var ErrRequest = errors.New("request failed")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server answered %d", e.Status)
	}
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
}

// RankedTechnician is one row of GET /rankings.
type RankedTechnician struct {
	Rank int `json:"rank"`
	model.Technician
}

// RecordRequest is the body of POST /records.
type RecordRequest struct {
	TechnicianID      string  `json:"technicianId"`
	Date              string  `json:"date,omitempty"`
	ServiceTime       float64 `json:"serviceTime"`
	FirstResponseTime float64 `json:"firstResponseTime"`
	Rating            float64 `json:"rating"`
	Notes             string  `json:"notes,omitempty"`
}

// RankingQuery holds the optional GET /rankings parameters.
type RankingQuery struct {
	Sort   string
	Search string
	Start  string
	End    string
}

func (q RankingQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("sort", q.Sort)
	set("q", q.Search)
	set("start", q.Start)
	set("end", q.End)
	return v
}

// Client talks to a running techrank server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks that the server answers GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Technicians lists technicians with metrics over an optional window.
func (c *Client) Technicians(ctx context.Context, start, end string) ([]model.Technician, error) {
	var out []model.Technician
	q := RankingQuery{Start: start, End: end}.values()
	err := c.do(ctx, http.MethodGet, withQuery("/technicians", q), nil, &out)
	return out, err
}

// AddTechnician creates a technician named name.
func (c *Client) AddTechnician(ctx context.Context, name string) (model.Technician, error) {
	var out model.Technician
	err := c.do(ctx, http.MethodPost, "/technicians", map[string]string{"name": name}, &out)
	return out, err
}

// AddRecord submits a service record. A non-empty key is sent as the
// Idempotency-Key header; replayed reports a 200 answer for a known key.
func (c *Client) AddRecord(ctx context.Context, key string, req RecordRequest) (rec model.ServiceRecord, replayed bool, err error) {
	body, err := json.Marshal(req)
	if err != nil {
		return rec, false, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	hreq, err := c.newRequest(ctx, http.MethodPost, "/records", bytes.NewReader(body))
	if err != nil {
		return rec, false, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if key != "" {
		hreq.Header.Set("Idempotency-Key", key)
	}
	resp, err := c.http.Do(hreq)
	if err != nil {
		return rec, false, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()
	if err := readAnswer(resp, &rec); err != nil {
		return rec, false, err
	}
	return rec, resp.StatusCode == http.StatusOK, nil
}

// Rankings fetches the ranked technicians for q.
func (c *Client) Rankings(ctx context.Context, q RankingQuery) ([]RankedTechnician, error) {
	var out []RankedTechnician
	err := c.do(ctx, http.MethodGet, withQuery("/rankings", q.values()), nil, &out)
	return out, err
}

// Overview fetches the team-wide aggregates over an optional window.
func (c *Client) Overview(ctx context.Context, start, end string) (model.Metrics, error) {
	var out model.Metrics
	q := RankingQuery{Start: start, End: end}.values()
	err := c.do(ctx, http.MethodGet, withQuery("/overview", q), nil, &out)
	return out, err
}

// Export downloads the dataset and returns its body and suggested file name.
func (c *Client) Export(ctx context.Context) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/export", nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, "", apiError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrRequest, err)
	}
	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	return body, name, nil
}

// Import replaces the server's dataset with body.
func (c *Client) Import(ctx context.Context, body []byte) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/import", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()
	return readAnswer(resp, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRequest, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()
	return readAnswer(resp, out)
}

// readAnswer decodes a 2xx body into out, or turns anything else into an
// *APIError.
func readAnswer(resp *http.Response, out any) error {
	if resp.StatusCode/100 != 2 {
		return apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s answer: %w", ErrRequest, resp.Request.URL.Path, err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, e); err != nil {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
