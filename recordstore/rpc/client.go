package rpc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adeilh/rakh-records/httpx"
	"github.com/adeilh/rakh-records/record"
	"github.com/adeilh/rakh-records/recordstore"
)

// Client calls a store mounted with Register. Transport failures and 5xx
// responses come back wrapped, never as recordstore.ErrNotFound.
type Client struct {
	http *httpx.Client
}

var _ recordstore.Client = (*Client)(nil)

func NewClient(baseURL string, opts ...httpx.ClientOption) *Client {
	opts = append([]httpx.ClientOption{httpx.WithBaseURL(baseURL)}, opts...)
	return &Client{http: httpx.NewClient(opts...)}
}

// WithToken sends token in TokenHeader on every call.
func WithToken(token string) httpx.ClientOption {
	return httpx.WithHeaders(map[string]string{TokenHeader: token})
}

// forward copies the caller's request id onto the outgoing call.
func forward(ctx context.Context) httpx.RequestOption {
	return httpx.WithRequestHeaders(map[string]string{
		httpx.HeaderRequestID: httpx.RequestIDFromContext(ctx),
	})
}

func (c *Client) ReadByID(ctx context.Context, id int64) (record.Record, error) {
	var r record.Record
	if _, err := c.http.Get(ctx, recordPath(id), &r, forward(ctx)); err != nil {
		return record.Record{}, translate("read", err)
	}
	return r, nil
}

func (c *Client) ReadAll(ctx context.Context) ([]record.Record, error) {
	var records []record.Record
	if _, err := c.http.Get(ctx, BasePath, &records, forward(ctx)); err != nil {
		return nil, translate("read all", err)
	}
	return records, nil
}

func (c *Client) Create(ctx context.Context, f record.Fields) (int64, error) {
	var out createResponse
	if _, err := c.http.Post(ctx, BasePath, f, &out, forward(ctx)); err != nil {
		return 0, translate("create", err)
	}
	return out.ID, nil
}

func (c *Client) Update(ctx context.Context, id int64, f record.Fields) (bool, error) {
	var out mutationResponse
	if _, err := c.http.Put(ctx, recordPath(id), f, &out, forward(ctx)); err != nil {
		return false, translate("update", err)
	}
	return out.Success, nil
}

func (c *Client) Delete(ctx context.Context, id int64) (bool, error) {
	var out mutationResponse
	if _, err := c.http.Delete(ctx, recordPath(id), &out, forward(ctx)); err != nil {
		return false, translate("delete", err)
	}
	return out.Success, nil
}

func recordPath(id int64) string {
	return BasePath + "/" + strconv.FormatInt(id, 10)
}

func translate(op string, err error) error {
	switch {
	case httpx.IsStatus(err, httpx.StatusNotFound):
		return recordstore.ErrNotFound
	case httpx.IsStatus(err, httpx.StatusBadRequest):
		return fmt.Errorf("rpc: %s: %w: %v", op, record.ErrInvalidFields, err)
	}
	return fmt.Errorf("rpc: %s: %w", op, err)
}
