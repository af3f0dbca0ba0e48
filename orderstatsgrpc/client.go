package orderstatsgrpc

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls the OrderStats service over a client connection, encoding messages as JSON.
//
// This type is concurrency safe.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient returns a Client for the connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Create creates a session hosting a new estimator and returns its result columns.
func (c *Client) Create(ctx context.Context, req *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error) {
	return invoke[CreateResponse](ctx, c.conn, "Create", req, opts)
}

// Update absorbs values into a session's estimator and returns the resulting rows.
func (c *Client) Update(ctx context.Context, req *UpdateRequest, opts ...grpc.CallOption) (*Table, error) {
	return invoke[Table](ctx, c.conn, "Update", req, opts)
}

// Value returns a session's current result rows.
func (c *Client) Value(ctx context.Context, req *ValueRequest, opts ...grpc.CallOption) (*Table, error) {
	return invoke[Table](ctx, c.conn, "Value", req, opts)
}

// Quantile queries a sketch session for quantile estimates.
func (c *Client) Quantile(ctx context.Context, req *QuantileRequest, opts ...grpc.CallOption) (*QuantileResponse, error) {
	return invoke[QuantileResponse](ctx, c.conn, "Quantile", req, opts)
}

// Delete deletes a session.
func (c *Client) Delete(ctx context.Context, req *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c.conn, "Delete", req, opts)
}

func invoke[Resp any](ctx context.Context, conn grpc.ClientConnInterface, method string, req any, opts []grpc.CallOption) (*Resp, error) {
	resp := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(ContentSubtype)}, opts...)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}
