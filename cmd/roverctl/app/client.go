package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/autopeer-io/roverpilot/internal/autonomy/gateway"
	missionapi "github.com/autopeer-io/roverpilot/internal/autonomy/server/http"
)

// apiError is a non-2xx answer of the task gateway.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// client talks to the task gateway HTTP API.
type client struct {
	base string
	http *http.Client
}

func newClient(server string, timeout time.Duration) *client {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return &client{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *client) Submit(ctx context.Context, req gateway.Request) (string, error) {
	var resp missionapi.SubmitResponse
	err := c.do(ctx, http.MethodPost, "/v1/missions", req, &resp)
	if err != nil && resp.ID != "" {
		return resp.ID, fmt.Errorf("mission %s rejected: %w", resp.ID, err)
	}
	return resp.ID, err
}

func (c *client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/missions/"+url.PathEscape(id)+"/cancel", nil, nil)
}

func (c *client) Get(ctx context.Context, id string) (gateway.Snapshot, error) {
	var snap gateway.Snapshot
	err := c.do(ctx, http.MethodGet, "/v1/missions/"+url.PathEscape(id), nil, &snap)
	return snap, err
}

func (c *client) Feedback(ctx context.Context, id string, since int) (missionapi.FeedbackResponse, error) {
	var resp missionapi.FeedbackResponse
	path := "/v1/missions/" + url.PathEscape(id) + "/feedback?since=" + strconv.Itoa(since)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *client) Report(ctx context.Context, id string) (string, error) {
	var resp missionapi.ReportResponse
	err := c.do(ctx, http.MethodGet, "/v1/missions/"+url.PathEscape(id)+"/report", nil, &resp)
	return resp.URL, err
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if out != nil && len(raw) > 0 {
		// Error answers may carry fields too (the id of a recorded empty request).
		_ = json.Unmarshal(raw, out)
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	return nil
}
