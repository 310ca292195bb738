package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/testhub-backend/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "d", RunsTable: "t"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{RunsTable: "t"}, nil); !errors.Is(err, errDatasetRequired) {
		t.Fatalf("expected dataset error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d"}, nil); !errors.Is(err, errTableNameRequired) {
		t.Fatalf("expected table error, got %v", err)
	}
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	if err := c.InsertRows(context.Background(), "t", []any{1}); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.EnsureTable(context.Background(), "t", nil, ""); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if c.RunsTable() != "" {
		t.Fatalf("expected empty table on nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestIsStatus(t *testing.T) {
	wrapped := fmt.Errorf("metadata: %w", &googleapi.Error{Code: http.StatusNotFound})
	if !isStatus(wrapped, http.StatusNotFound) {
		t.Fatalf("expected wrapped 404 to match")
	}
	if isStatus(&googleapi.Error{Code: http.StatusForbidden}, http.StatusNotFound) {
		t.Fatalf("403 is not a not-found error")
	}
	if !isStatus(&googleapi.Error{Code: http.StatusConflict}, http.StatusConflict) {
		t.Fatalf("expected 409 to match conflict")
	}
	if isStatus(errors.New("boom"), http.StatusNotFound) {
		t.Fatalf("plain errors carry no status")
	}
}
