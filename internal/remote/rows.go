package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/taskpage/taskpage/internal/model"
)

const tasksPath = "/rest/v1/tasks"

// RowsClient talks to the row-CRUD surface of the hosted service. The
// injected HTTP client is expected to attach the session's bearer token
// (see NewRowsClient); this client only adds the public API key.
type RowsClient struct {
	base   string
	apiKey string
	http   *http.Client
	logger *zap.Logger
}

// NewRowsClient builds a rows client. httpClient should come from
// oauth2.NewClient over the session manager so each request carries the
// current access token.
func NewRowsClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *RowsClient {
	return &RowsClient{
		base:   strings.TrimRight(baseURL, "/"),
		apiKey: apiKey,
		http:   httpClient,
		logger: logger,
	}
}

func (c *RowsClient) SelectTasks(ctx context.Context) ([]model.Task, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, q, nil, "", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *RowsClient) InsertTask(ctx context.Context, row model.Task, idempKey string) (model.Task, error) {
	rows, err := c.returning(ctx, http.MethodPost, url.Values{}, row, idempKey)
	if err != nil {
		return model.Task{}, err
	}
	if len(rows) == 0 {
		return model.Task{}, &Error{Status: http.StatusBadGateway, Message: "insert returned no row"}
	}
	return rows[0], nil
}

func (c *RowsClient) UpdateTask(ctx context.Context, id string, patch TaskPatch) (model.Task, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)

	rows, err := c.returning(ctx, http.MethodPatch, q, patch, "")
	if err != nil {
		return model.Task{}, err
	}
	if len(rows) == 0 {
		return model.Task{}, ErrNotFound
	}
	return rows[0], nil
}

func (c *RowsClient) DeleteTask(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)

	rows, err := c.returning(ctx, http.MethodDelete, q, nil, "")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// returning performs a mutating request asking the service to hand back the
// affected rows, which are authoritative for server-assigned fields.
func (c *RowsClient) returning(ctx context.Context, method string, q url.Values, body any, idempKey string) ([]model.Task, error) {
	var rows []model.Task
	if err := c.do(ctx, method, q, body, idempKey, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *RowsClient) do(ctx context.Context, method string, q url.Values, body any, idempKey string, out any) error {
	u := c.base + tasksPath
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	if idempKey != "" {
		req.Header.Set("Idempotency-Key", idempKey)
	}

	if err := doJSON(c.http, req, out); err != nil {
		c.logger.Error("rows request failed",
			zap.String("method", method),
			zap.Error(err),
		)
		return err
	}
	return nil
}
