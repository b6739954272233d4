package simvue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Run statuses understood by the server.
const (
	StatusCreated    = "created"
	StatusRunning    = "running"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusTerminated = "terminated"
	StatusLost       = "lost"
)

// IsTerminal reports whether a run in this status can no longer receive data.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusTerminated, StatusLost:
		return true
	}
	return false
}

// Run is a run as returned by the server.
type Run struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Status      string         `json:"status" yaml:"status"`
	Folder      string         `json:"folder" yaml:"folder"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	User        string         `json:"user,omitempty" yaml:"user,omitempty"`
	Created     string         `json:"created,omitempty" yaml:"created,omitempty"`
	Started     string         `json:"started,omitempty" yaml:"started,omitempty"`
	EndTime     string         `json:"endtime,omitempty" yaml:"endtime,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	System      map[string]any `json:"system,omitempty" yaml:"system,omitempty"`
	TTL         *int           `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// RunSpec describes a run to create.
type RunSpec struct {
	Name        string         `json:"name,omitempty"`
	Folder      string         `json:"folder"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags"`
	Status      string         `json:"status"`
	TTL         *int           `json:"ttl,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	System      map[string]any `json:"system,omitempty"`
}

// RunUpdate is a partial update; nil fields are left unchanged.
type RunUpdate struct {
	Status   *string        `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListOptions controls run listing.
type ListOptions struct {
	Count      int
	Start      int
	SortBy     []string
	Descending bool
}

// CreateFolder creates a folder by path. An existing folder is not an error.
func (c *Client) CreateFolder(ctx context.Context, path string) error {
	err := c.do(ctx, http.MethodPost, "folders", nil, map[string]string{"path": path}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return nil
	}
	return err
}

// CreateRun creates a run and returns it with the server-assigned id and name.
func (c *Client) CreateRun(ctx context.Context, spec RunSpec) (*Run, error) {
	if spec.Tags == nil {
		spec.Tags = []string{}
	}
	if spec.Folder == "" {
		spec.Folder = "/"
	}

	var resp struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodPost, "runs", nil, spec, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("server did not return a run id")
	}

	return &Run{
		ID:          resp.ID,
		Name:        resp.Name,
		Status:      spec.Status,
		Folder:      spec.Folder,
		Description: spec.Description,
		Tags:        spec.Tags,
		Metadata:    spec.Metadata,
		TTL:         spec.TTL,
	}, nil
}

// GetRun fetches a run by id. Missing runs return an error matching ErrNotFound.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	if err := c.do(ctx, http.MethodGet, "runs/"+url.PathEscape(id), nil, nil, &r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = id
	}
	return &r, nil
}

// GetRunRaw fetches a run with every field the server returns.
func (c *Client) GetRunRaw(ctx context.Context, id string) (map[string]any, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, "runs/"+url.PathEscape(id), nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// UpdateRun applies a partial update.
func (c *Client) UpdateRun(ctx context.Context, id string, upd RunUpdate) error {
	return c.do(ctx, http.MethodPut, "runs/"+url.PathEscape(id), nil, upd, nil)
}

// SetStatus is shorthand for an update that only changes the status.
func (c *Client) SetStatus(ctx context.Context, id, status string) error {
	return c.UpdateRun(ctx, id, RunUpdate{Status: &status})
}

// AbortRun asks the server to terminate a run with a reason.
func (c *Client) AbortRun(ctx context.Context, id, reason string) error {
	return c.do(ctx, http.MethodPut, "runs/"+url.PathEscape(id)+"/abort", nil, map[string]string{"reason": reason}, nil)
}

// DeleteRun removes a run and its data.
func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "runs/"+url.PathEscape(id), nil, nil, nil)
}

// ListRuns returns runs ordered by opts.SortBy (default "created").
func (c *Client) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	q := url.Values{}
	if opts.Count > 0 {
		q.Set("count", strconv.Itoa(opts.Count))
	}
	if opts.Start > 0 {
		q.Set("start", strconv.Itoa(opts.Start))
	}

	sortBy := opts.SortBy
	if len(sortBy) == 0 {
		sortBy = []string{"created"}
	}
	type sorting struct {
		Column     string `json:"column"`
		Descending bool   `json:"descending"`
	}
	sorts := make([]sorting, len(sortBy))
	for i, col := range sortBy {
		sorts[i] = sorting{Column: col, Descending: opts.Descending}
	}
	raw, err := json.Marshal(sorts)
	if err != nil {
		return nil, err
	}
	q.Set("sorting", string(raw))

	var resp struct {
		Data  []Run `json:"data"`
		Count int   `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "runs", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
