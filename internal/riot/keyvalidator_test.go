package riot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"summoner-insights/internal/fault"
)

func TestKeyValidator_Check(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantValid bool
		wantKind  fault.Kind // empty when no error is expected
	}{
		{"ok", http.StatusOK, true, ""},
		{"forbidden", http.StatusForbidden, false, ""},
		{"unauthorized", http.StatusUnauthorized, false, ""},
		{"server error", http.StatusInternalServerError, false, fault.KindUpstream},
		{"rate limited", http.StatusTooManyRequests, false, fault.KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != statusEndpoint {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("X-Riot-Token") != "RGAPI-test-key" {
					t.Error("Expected X-Riot-Token header to be set")
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"id":"NA1","name":"North America"}`))
			}))
			defer server.Close()

			check, err := NewKeyValidator(WithBaseURL(server.URL)).Check(context.Background(), "RGAPI-test-key")
			if tt.wantKind != "" {
				if !fault.Is(err, tt.wantKind) {
					t.Fatalf("err = %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if check.Valid != tt.wantValid || check.Status != tt.status {
				t.Errorf("check = %+v", check)
			}
			if tt.wantValid && check.PlatformName != "North America" {
				t.Errorf("platform name = %q", check.PlatformName)
			}
		})
	}
}

// Network errors must surface as errors, not as an invalid key.
func TestKeyValidator_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer server.Close()

	check, err := NewKeyValidator(WithBaseURL(server.URL)).Check(context.Background(), "RGAPI-test-key")
	if !fault.Is(err, fault.KindUpstream) {
		t.Errorf("Expected upstream error, got %v", err)
	}
	if check != nil {
		t.Error("Expected no result on network error")
	}
}

func TestKeyValidator_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := NewKeyValidator(WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))
	if _, err := v.Check(context.Background(), "RGAPI-test-key"); err == nil {
		t.Error("Expected timeout error to be returned")
	}
}

func TestKeyValidator_EmptyKey(t *testing.T) {
	_, err := NewKeyValidator().Check(context.Background(), "")
	if !fault.Is(err, fault.KindValidation) {
		t.Errorf("expected validation error for empty key, got %v", err)
	}
}

func TestWithPlatform(t *testing.T) {
	v := NewKeyValidator(WithPlatform("EUW1"))
	if v.baseURL != "https://euw1.api.riotgames.com" || v.platform != "euw1" {
		t.Errorf("unexpected validator %s / %s", v.baseURL, v.platform)
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey("RGAPI-12345678-abcd"); got != "RGAPI...abcd" {
		t.Errorf("MaskAPIKey() = %q", got)
	}
	if got := MaskAPIKey("short"); got != "****" {
		t.Errorf("MaskAPIKey() = %q", got)
	}
}
