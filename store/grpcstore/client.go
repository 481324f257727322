package grpcstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/custodia-sh/custodia/model"
)

// Client implements store.Store over the AccountStore gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client AccountStoreClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

// Dial connects lazily; connection establishment happens on the first RPC,
// so deadlines are per-RPC via Timeout, never at dial time.
func Dial(target string, timeout time.Duration) (*Client, error) {
	cc, err := grpc.DialContext(
		context.Background(),
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewAccountStoreClient(cc), Timeout: timeout}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Get(ctx context.Context, id string) (*model.Account, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Get(ctx, wrapperspb.String(id))
	if err != nil {
		return nil, mapRPC(err)
	}
	var a model.Account
	if err := json.Unmarshal(reply.GetValue(), &a); err != nil {
		return nil, fmt.Errorf("grpcstore: decode account: %w", err)
	}
	return &a, nil
}

func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Exists(ctx, wrapperspb.String(id))
	if err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) Put(ctx context.Context, account *model.Account) error {
	b, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("grpcstore: encode account: %w", err)
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	if _, err := c.client.Put(ctx, wrapperspb.Bytes(b)); err != nil {
		return mapRPC(err)
	}
	return nil
}

func (c *Client) Scan(ctx context.Context) ([]*model.Account, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Scan(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, mapRPC(err)
	}
	var all []*model.Account
	if err := json.Unmarshal(reply.GetValue(), &all); err != nil {
		return nil, fmt.Errorf("grpcstore: decode accounts: %w", err)
	}
	return all, nil
}

// Apply ships the whole batch in one RPC; the server commits it through its
// own store's Apply, so all-or-nothing holds end to end.
func (c *Client) Apply(ctx context.Context, batch []*model.Account) error {
	b, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("grpcstore: encode batch: %w", err)
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	if _, err := c.client.Apply(ctx, wrapperspb.Bytes(b)); err != nil {
		return mapRPC(err)
	}
	return nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
