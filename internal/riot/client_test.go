package riot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"summoner-insights/internal/fault"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient("RGAPI-test-key", "na1", WithAPIBaseURL(server.URL), WithRateLimits(1000, 1000))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient_RequiresKeyAndKnownRegion(t *testing.T) {
	if _, err := NewClient("", "na1"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := NewClient("RGAPI-x", "atlantis"); !fault.Is(err, fault.KindValidation) {
		t.Errorf("expected validation error for unknown region, got %v", err)
	}
}

func TestResolvePlayer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/riot/account/v1/accounts/by-riot-id/Faker%20Jr/KR1" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		w.Write([]byte(`{"puuid":"puuid-123","gameName":"Faker Jr","tagLine":"KR1"}`))
	})

	puuid, err := c.ResolvePlayer(context.Background(), "Faker Jr", "KR1", "kr")
	if err != nil {
		t.Fatalf("ResolvePlayer: %v", err)
	}
	if puuid != "puuid-123" {
		t.Errorf("puuid = %q", puuid)
	}
}

func TestResolvePlayer_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":{"message":"Data not found","status_code":404}}`))
	})

	_, err := c.ResolvePlayer(context.Background(), "Nobody", "NA1", "na1")
	if !fault.Is(err, fault.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestResolvePlayer_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":{"message":"Unknown apikey","status_code":401}}`))
	})

	_, err := c.ResolvePlayer(context.Background(), "Someone", "NA1", "")
	var fe *fault.Error
	if !asFault(err, &fe) || fe.Kind != fault.KindUpstream || fe.Status != 401 {
		t.Fatalf("expected upstream 401, got %v", err)
	}
	if fe.Message != "Unknown apikey" {
		t.Errorf("message = %q", fe.Message)
	}
}

func TestListRecentMatchIDs_ClampsCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("count"); got != "100" {
			t.Errorf("count = %s, want 100", got)
		}
		if got := r.URL.Query().Get("start"); got != "0" {
			t.Errorf("start = %s, want 0", got)
		}
		w.Write([]byte(`["NA1_3","NA1_2","NA1_1"]`))
	})

	ids, err := c.ListRecentMatchIDs(context.Background(), "puuid-123", 500)
	if err != nil {
		t.Fatalf("ListRecentMatchIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != "NA1_3" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestListRecentMatchIDs_Queue(t *testing.T) {
	tests := []struct {
		name  string
		queue int
		want  string
	}{
		{"every queue", 0, ""},
		{"ranked solo", 420, "420"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("queue"); got != tt.want {
					t.Errorf("queue = %q, want %q", got, tt.want)
				}
				w.Write([]byte(`["NA1_1"]`))
			}))
			defer server.Close()

			c, err := NewClient("RGAPI-test-key", "na1", WithAPIBaseURL(server.URL), WithRateLimits(1000, 1000), WithQueue(tt.queue))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := c.ListRecentMatchIDs(context.Background(), "puuid-123", 5); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestDoRequest_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"metadata":{"matchId":"NA1_1"},"info":{"gameDuration":1800}}`))
	})

	m, err := c.GetMatchDetail(context.Background(), "NA1_1")
	if err != nil {
		t.Fatalf("GetMatchDetail: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
	if m.Metadata.MatchID != "NA1_1" || m.Info.GameDuration == nil || *m.Info.GameDuration != 1800 {
		t.Errorf("unexpected match %+v", m)
	}
}

func TestDoRequest_GivesUpAfterRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	WithMaxRetries(1)(c)

	_, err := c.GetTimelineDetail(context.Background(), "NA1_1")
	var fe *fault.Error
	if !asFault(err, &fe) || fe.Status != http.StatusTooManyRequests {
		t.Fatalf("expected upstream 429, got %v", err)
	}
}

func TestDoRequest_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata":`))
	})

	_, err := c.GetTimelineDetail(context.Background(), "NA1_1")
	if !fault.Is(err, fault.KindMalformedPayload) {
		t.Fatalf("expected malformed_payload, got %v", err)
	}
}

func TestRegionalRoute(t *testing.T) {
	tests := map[string]string{"na1": "americas", "EUW1": "europe", "kr": "asia", "oc1": "sea"}
	for platform, want := range tests {
		got, err := RegionalRoute(platform)
		if err != nil || got != want {
			t.Errorf("RegionalRoute(%q) = %q, %v; want %q", platform, got, err, want)
		}
	}
}

func TestParseRiotID(t *testing.T) {
	name, tag, err := ParseRiotID("Hide on bush#KR1")
	if err != nil || name != "Hide on bush" || tag != "KR1" {
		t.Errorf("ParseRiotID = %q, %q, %v", name, tag, err)
	}
	for _, bad := range []string{"nohash", "#tag", "name#"} {
		if _, _, err := ParseRiotID(bad); !fault.Is(err, fault.KindValidation) {
			t.Errorf("ParseRiotID(%q) expected validation error", bad)
		}
	}
}

func asFault(err error, target **fault.Error) bool {
	return errors.As(err, target)
}
