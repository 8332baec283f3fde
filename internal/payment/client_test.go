package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]any
		wantErr  bool
	}{
		{"done", map[string]any{"status": "DONE"}, false},
		{"already processed retry", map[string]any{"code": "ALREADY_PROCESSED_PAYMENT", "message": "dup"}, false},
		{"rejected", map[string]any{"code": "INVALID_CARD", "message": "expired"}, true},
		{"not done", map[string]any{"status": "IN_PROGRESS"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/payments/confirm" {
					t.Errorf("path = %s", r.URL.Path)
				}
				gotAuth = r.Header.Get("Authorization")
				var req confirmRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req.Amount != 2000 {
					t.Errorf("amount = %d, want 2000", req.Amount)
				}
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "sk_test")
			err := c.Confirm(context.Background(), "pk-1", "order-1", 2000)
			if (err != nil) != tt.wantErr {
				t.Errorf("Confirm err = %v, wantErr %v", err, tt.wantErr)
			}
			if gotAuth == "" {
				t.Error("no Authorization header sent")
			}
		})
	}
}

func TestRelease(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{"released", "RELEASED", false},
		{"still pending", "PENDING", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/payments/release" {
					t.Errorf("path = %s", r.URL.Path)
				}
				json.NewEncoder(w).Encode(map[string]any{"status": tt.status})
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "sk_test")
			err := c.Release(context.Background(), "pk-1", "bank:123")
			if (err != nil) != tt.wantErr {
				t.Errorf("Release err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
