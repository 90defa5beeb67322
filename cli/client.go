package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/kbukum/orchestrator/api"
	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/httpclient"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/scheduler"
	"github.com/kbukum/orchestrator/server"
)

// Client calls the operator API of a running orchestrator.
type Client struct {
	http *httpclient.Client
}

// NewClient creates a client for the API served at baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	hc, err := httpclient.New(httpclient.Config{
		BaseURL:   baseURL,
		Timeout:   timeout,
		UserAgent: "orchestrator-cli",
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

type envelope[T any] struct {
	Data T            `json:"data"`
	Meta *server.Meta `json:"meta,omitempty"`
}

// RunQuery selects runs for QueryRuns. Zero fields are omitted.
type RunQuery struct {
	Pipeline string
	Trigger  string
	Status   string
	From     *time.Time
	To       *time.Time
	Limit    int
}

func (q RunQuery) params() map[string]string {
	p := make(map[string]string)
	if q.Pipeline != "" {
		p["pipeline"] = q.Pipeline
	}
	if q.Trigger != "" {
		p["trigger"] = q.Trigger
	}
	if q.Status != "" {
		p["status"] = q.Status
	}
	if q.From != nil {
		p["from"] = q.From.Format(time.RFC3339)
	}
	if q.To != nil {
		p["to"] = q.To.Format(time.RFC3339)
	}
	if q.Limit > 0 {
		p["limit"] = strconv.Itoa(q.Limit)
	}
	return p
}

func (c *Client) ListPipelines(ctx context.Context) ([]api.PipelineSummary, error) {
	return get[[]api.PipelineSummary](ctx, c, "/api/v1/pipelines", nil)
}

func (c *Client) GetPipeline(ctx context.Context, name string) (*pipeline.Pipeline, error) {
	return get[*pipeline.Pipeline](ctx, c, "/api/v1/pipelines/"+url.PathEscape(name), nil)
}

// CreateRun starts an on-demand run of the named pipeline.
func (c *Client) CreateRun(ctx context.Context, name string, params map[string]string) (*api.RunCreated, error) {
	return post[*api.RunCreated](ctx, c, "/api/v1/pipelines/"+url.PathEscape(name)+"/runs",
		api.CreateRunRequest{Parameters: params})
}

func (c *Client) QueryRuns(ctx context.Context, q RunQuery) ([]history.Run, error) {
	return get[[]history.Run](ctx, c, "/api/v1/runs", q.params())
}

func (c *Client) GetRun(ctx context.Context, id string) (*history.Run, error) {
	return get[*history.Run](ctx, c, "/api/v1/runs/"+url.PathEscape(id), nil)
}

func (c *Client) CancelRun(ctx context.Context, id string) (*api.RunCancelled, error) {
	return post[*api.RunCancelled](ctx, c, "/api/v1/runs/"+url.PathEscape(id)+"/cancel", nil)
}

// ArchiveRuns exports the terminal runs started in [from, to).
func (c *Client) ArchiveRuns(ctx context.Context, from, to time.Time) (*history.ArchiveResult, error) {
	return post[*history.ArchiveResult](ctx, c, "/api/v1/runs/archive", api.ArchiveRequest{From: from, To: to})
}

func (c *Client) ListTriggers(ctx context.Context) ([]scheduler.TriggerInfo, error) {
	return get[[]scheduler.TriggerInfo](ctx, c, "/api/v1/triggers", nil)
}

func (c *Client) StartTrigger(ctx context.Context, name string) (*scheduler.TriggerInfo, error) {
	return post[*scheduler.TriggerInfo](ctx, c, "/api/v1/triggers/"+url.PathEscape(name)+"/start", nil)
}

func (c *Client) StopTrigger(ctx context.Context, name string) (*scheduler.TriggerInfo, error) {
	return post[*scheduler.TriggerInfo](ctx, c, "/api/v1/triggers/"+url.PathEscape(name)+"/stop", nil)
}

// LastSuccess returns the trigger's latest successful run, or nil.
func (c *Client) LastSuccess(ctx context.Context, name string) (*history.Run, error) {
	return get[*history.Run](ctx, c, "/api/v1/triggers/"+url.PathEscape(name)+"/last-success", nil)
}

func get[T any](ctx context.Context, c *Client, path string, query map[string]string) (T, error) {
	env, err := httpclient.GetJSON[envelope[T]](ctx, c.http, path, query)
	if err != nil {
		var zero T
		return zero, apiError(err)
	}
	return env.Data, nil
}

func post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	env, err := httpclient.PostJSON[envelope[T]](ctx, c.http, path, body)
	if err != nil {
		var zero T
		return zero, apiError(err)
	}
	return env.Data, nil
}

// apiError turns an API error body back into an *apperrors.AppError.
func apiError(err error) error {
	var he *httpclient.Error
	if !errors.As(err, &he) || len(he.Body) == 0 {
		return err
	}
	var resp apperrors.ErrorResponse
	if json.Unmarshal(he.Body, &resp) != nil || resp.Error.Code == "" {
		return err
	}
	appErr := apperrors.New(resp.Error.Code, resp.Error.Message, he.StatusCode)
	appErr.Details = resp.Error.Details
	return appErr
}
