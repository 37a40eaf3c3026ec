package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/baller70/bookmarkaihub-sub004/internal/models"
	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
)

func TestClassifyCmd(t *testing.T) {
	t.Parallel()
	cmd := NewClassifyCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"/api/auth/login", "/api/bookmarks", "/dashboard", "/favicon.ico"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := map[string]string{
		"/api/auth/login": "auth",
		"/api/bookmarks":  "api",
		"/dashboard":      "general",
		"/favicon.ico":    "bypass",
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != len(want)+1 {
		t.Fatalf("Expected %d lines, got %d:\n%s", len(want)+1, len(lines), out.String())
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) != 2 || want[fields[0]] != fields[1] {
			t.Errorf("Unexpected line %q", line)
		}
	}
}

func TestClassifyCmd_RequiresPath(t *testing.T) {
	t.Parallel()
	cmd := NewClassifyCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error without paths")
	}
}

func TestParsePolicyFlags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		class     string
		window    string
		max       int
		retention time.Duration
		wantErr   error
	}{
		{"valid", "Auth", "10m", 5, ratelimit.DefaultRetention, nil},
		{"unknown class", "admin", "10m", 5, ratelimit.DefaultRetention, ratelimit.ErrUnknownClass},
		{"zero max", "api", "1m", 0, ratelimit.DefaultRetention, ratelimit.ErrInvalidPolicy},
		{"beyond default retention", "api", "2h", 5, ratelimit.DefaultRetention, ratelimit.ErrInvalidPolicy},
		{"beyond configured retention", "api", "30m", 5, 20 * time.Minute, ratelimit.ErrInvalidPolicy},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			row, err := parsePolicyFlags(tt.class, tt.window, tt.max, tt.retention)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("parsePolicyFlags() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePolicyFlags() error = %v", err)
			}
			if row.Class != "auth" || row.WindowMs != 600000 || row.MaxRequests != 5 {
				t.Errorf("parsePolicyFlags() = %+v", row)
			}
		})
	}

	if _, err := parsePolicyFlags("api", "soon", 5, ratelimit.DefaultRetention); err == nil {
		t.Error("Expected error for unparsable window")
	}
}

func TestPrintPolicies(t *testing.T) {
	t.Parallel()
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []*models.RateLimitPolicy{
		{Class: "auth", WindowMs: 300000, MaxRequests: 10, UpdatedAt: updated},
	}
	var out bytes.Buffer
	if err := printPolicies(&out, rows); err != nil {
		t.Fatalf("printPolicies() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"auth", "5m0s", "override", "2024-05-01T12:00:00Z", "api", "1m0s", "100", "default"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, got)
		}
	}
}
