package grpcstore

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/custodia-sh/custodia/store"
	"github.com/custodia-sh/custodia/store/memstore"
	"github.com/custodia-sh/custodia/store/testkit"
)

func bufClient(t *testing.T, backend store.Store) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterAccountStoreServer(srv, &Server{Store: backend})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	return &Client{cc: cc, client: NewAccountStoreClient(cc), Timeout: 2 * time.Second}
}

func TestClient_TimeoutGatesRPCs(t *testing.T) {
	// A listener nobody serves: the connection never completes its
	// handshake, so only the per-RPC deadline can unblock the call.
	lis := bufconn.Listen(1024)
	t.Cleanup(func() { _ = lis.Close() })

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	c := &Client{cc: cc, client: NewAccountStoreClient(cc), Timeout: 100 * time.Millisecond}

	start := time.Now()
	if _, err := c.Get(context.Background(), "anything"); err == nil {
		t.Fatal("Get succeeded against a dead endpoint")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Get blocked %v, want the 100ms per-RPC deadline to apply", elapsed)
	}
}

func TestGRPCStore_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) store.Store {
		t.Helper()
		return bufClient(t, memstore.New())
	})
}
