package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if ts, ok := body["timestamp"].(string); !ok {
		t.Error("Expected timestamp to be present")
	} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("Timestamp '%s' is not valid RFC3339: %v", ts, err)
	}
	return body
}

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		data   any
		check  func(*testing.T, any)
	}{
		{
			name:   "policy list",
			status: http.StatusOK,
			data:   []PolicyView{{Class: "api", Window: "1m0s", WindowMs: 60000, MaxRequests: 100}},
			check: func(t *testing.T, data any) {
				list, ok := data.([]any)
				if !ok || len(list) != 1 {
					t.Fatalf("Expected one policy, got %v", data)
				}
				if class := list[0].(map[string]any)["class"]; class != "api" {
					t.Errorf("Expected class 'api', got %v", class)
				}
			},
		},
		{
			name:   "nil data",
			status: http.StatusCreated,
			data:   nil,
			check: func(t *testing.T, data any) {
				if data != nil {
					t.Errorf("Expected data to be nil, got %v", data)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			body := decodeBody(t, w)
			if success, ok := body["success"].(bool); !ok || !success {
				t.Error("Expected success to be true")
			}
			tt.check(t, body["data"])
		})
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		message     string
		wantMessage string
	}{
		{"short message", "Invalid input", "Invalid input"},
		{"long message truncated", strings.Repeat("x", 250), strings.Repeat("x", maxErrorMessageLength) + "..."},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			respondJSONError(w, http.StatusBadRequest, "Bad Request", tt.message)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			body := decodeBody(t, w)
			if success, ok := body["success"].(bool); !ok || success {
				t.Error("Expected success to be false")
			}
			if body["error"] != "Bad Request" {
				t.Errorf("Expected error 'Bad Request', got '%v'", body["error"])
			}
			if body["message"] != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, body["message"])
			}
		})
	}
}
