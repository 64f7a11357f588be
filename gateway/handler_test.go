package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adeilh/rakh-records/auth"
	"github.com/adeilh/rakh-records/httpx"
	"github.com/adeilh/rakh-records/record"
)

func newTestServer(t *testing.T, f *fixture, mw *auth.Middleware) *httpx.Client {
	t.Helper()
	server := httpx.NewServer(httpx.WithErrorMapper(StatusFor))
	server.RegisterRoutes(NewHandler(f.svc, mw).Register)
	ts := httpx.NewTestServer(server.Handler())
	t.Cleanup(ts.Close)
	return httpx.NewClient(httpx.WithBaseURL(ts.BaseURL()))
}

func TestHandlerStatuses(t *testing.T) {
	store := newSpyStore()
	f := newFixture(t, store)
	client := newTestServer(t, f, nil)
	ctx := context.Background()

	resp, err := client.Get(ctx, BasePath, nil)
	if err != nil || resp.StatusCode() != httpx.StatusNoContent {
		t.Fatalf("GET empty list = %v, %v; want 204", resp.StatusCode(), err)
	}
	if _, err := client.Get(ctx, BasePath+"/1", nil); !httpx.IsStatus(err, httpx.StatusNotFound) {
		t.Fatalf("GET missing = %v, want 404", err)
	}
	if _, err := client.Get(ctx, BasePath+"/x", nil); !httpx.IsStatus(err, httpx.StatusBadRequest) {
		t.Fatalf("GET bad id = %v, want 400", err)
	}

	store.records[1] = record.New(1, fieldsA)
	var got record.Record
	resp, err = client.Get(ctx, BasePath+"/1", &got)
	if err != nil || resp.StatusCode() != httpx.StatusOK || got != record.New(1, fieldsA) {
		t.Fatalf("GET found = %v, %+v, %v", resp.StatusCode(), got, err)
	}
	var list []record.Record
	resp, err = client.Get(ctx, BasePath, &list)
	if err != nil || resp.StatusCode() != httpx.StatusOK || len(list) != 1 {
		t.Fatalf("GET list = %v, %+v, %v", resp.StatusCode(), list, err)
	}

	var ack Ack
	resp, err = client.Post(ctx, BasePath, fieldsA, &ack)
	if err != nil || resp.StatusCode() != httpx.StatusAccepted || ack.Op != "CREATE" {
		t.Fatalf("POST = %v, %+v, %v", resp.StatusCode(), ack, err)
	}
	resp, err = client.Put(ctx, BasePath+"/1", fieldsA, &ack)
	if err != nil || resp.StatusCode() != httpx.StatusAccepted || ack.ID != 1 {
		t.Fatalf("PUT = %v, %+v, %v", resp.StatusCode(), ack, err)
	}
	resp, err = client.Delete(ctx, BasePath+"/1", &ack)
	if err != nil || resp.StatusCode() != httpx.StatusAccepted || ack.Op != "DELETE" {
		t.Fatalf("DELETE = %v, %+v, %v", resp.StatusCode(), ack, err)
	}
	if f.queue.Len() != 3 {
		t.Fatalf("queue len = %d, want 3", f.queue.Len())
	}

	bad := fieldsA
	bad.HireDate = "01/01/2024"
	if _, err := client.Post(ctx, BasePath, bad, nil); !httpx.IsStatus(err, httpx.StatusBadRequest) {
		t.Fatalf("POST invalid = %v, want 400", err)
	}
}

func TestHandlerStoreFailureIs503(t *testing.T) {
	store := newSpyStore()
	store.err = errors.New("timeout")
	client := newTestServer(t, newFixture(t, store), nil)
	if _, err := client.Get(context.Background(), BasePath+"/1", nil); !httpx.IsStatus(err, httpx.StatusServiceUnavailable) {
		t.Fatalf("GET with store down = %v, want 503", err)
	}
}

func TestHandlerWriteAuth(t *testing.T) {
	signer, err := auth.NewSigner([]byte("0123456789abcdef0123456789abcdef"), auth.WithTTL(time.Minute))
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	mw, _ := auth.NewMiddleware(signer, auth.RequireScope(auth.ScopeWrite))
	f := newFixture(t, newSpyStore(record.New(1, fieldsA)))
	client := newTestServer(t, f, mw)
	ctx := context.Background()

	if _, err := client.Get(ctx, BasePath+"/1", nil); err != nil {
		t.Fatalf("GET without token = %v, reads must stay open", err)
	}
	if _, err := client.Delete(ctx, BasePath+"/1", nil); !httpx.IsStatus(err, httpx.StatusUnauthorized) {
		t.Fatalf("DELETE without token = %v, want 401", err)
	}
	token, _ := signer.Issue(ctx, "ops", auth.ScopeWrite)
	if _, err := client.Delete(ctx, BasePath+"/1", nil, httpx.WithBearer(token.Raw)); err != nil {
		t.Fatalf("DELETE with token = %v", err)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", f.queue.Len())
	}
}
