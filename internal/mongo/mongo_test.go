package mongo

import (
	"context"
	"strings"
	"testing"
)

func TestNewClientValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"empty uri", Config{Database: "greenpulse"}, "URI cannot be empty"},
		{"empty database", Config{URI: "mongodb://localhost:27017"}, "database name cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close on nil client failed: %v", err)
	}
	if c.Database() != nil {
		t.Fatalf("expected nil database")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected Ping on nil client to fail")
	}
}
