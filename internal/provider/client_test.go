package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pzhurov/fitrank/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.ProviderConfig{
		APIBaseURL:   server.URL,
		TokenURL:     server.URL + "/oauth/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Timeout:      config.Duration{Duration: 5 * time.Second},
	}
	return NewClient(cfg), server
}

func TestRefreshAccessToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "client-id" {
			t.Errorf("client_id = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600}`))
	}))

	tokens, err := client.RefreshAccessToken(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("RefreshAccessToken failed: %v", err)
	}

	if tokens.AccessToken != "new-access" {
		t.Errorf("AccessToken = %q", tokens.AccessToken)
	}
	if tokens.RefreshToken != "new-refresh" {
		t.Errorf("RefreshToken = %q", tokens.RefreshToken)
	}
	if tokens.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d", tokens.ExpiresIn)
	}
}

func TestRefreshAccessTokenInvalidGrant(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized} {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"token revoked"}`))
		}))

		_, err := client.RefreshAccessToken(context.Background(), "dead-token")
		if !errors.Is(err, ErrCredentialRejected) {
			t.Errorf("status %d: expected ErrCredentialRejected, got %v", status, err)
		}
	}
}

func TestRefreshAccessTokenTransientFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "oops"},
		{"gateway timeout", http.StatusGatewayTimeout, ""},
		{"bad request without invalid_grant", http.StatusBadRequest, `{"error":"invalid_request"}`},
		{"malformed success body", http.StatusOK, `{"access_token":`},
		{"missing access token", http.StatusOK, `{"expires_in":600}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))

			_, err := client.RefreshAccessToken(context.Background(), "token")
			if err == nil {
				t.Fatal("Expected error")
			}
			if errors.Is(err, ErrCredentialRejected) {
				t.Errorf("Transient failure misclassified as credential rejection: %v", err)
			}
		})
	}
}

func TestFetchResource(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))

	body, err := client.FetchResource(context.Background(), "/v1/recovery?date=2026-08-28", "access-token")
	if err != nil {
		t.Fatalf("FetchResource failed: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
}

func TestFetchResourceNonOK(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if _, err := client.FetchResource(context.Background(), "/v1/missing", "token"); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestSleepForDay(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("date"); got != "2026-08-28" {
			t.Errorf("date = %q", got)
		}
		w.Write([]byte(`{"records":[{"performance_pct":88,"stages":{"light_minutes":200,"deep_minutes":90,"rem_minutes":100}}]}`))
	}))

	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	records, err := client.SleepForDay(context.Background(), "token", date)
	if err != nil {
		t.Fatalf("SleepForDay failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].PerformancePct == nil || *records[0].PerformancePct != 88 {
		t.Errorf("PerformancePct = %v", records[0].PerformancePct)
	}
}

func TestCycleForDay(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"strain":14.2,"recovery":{"score":0.67}}`))
	}))

	cycle, err := client.CycleForDay(context.Background(), "token", time.Now())
	if err != nil {
		t.Fatalf("CycleForDay failed: %v", err)
	}
	if cycle.Strain == nil || *cycle.Strain != 14.2 {
		t.Errorf("Strain = %v", cycle.Strain)
	}
	if score, ok := ExtractRecoveryScore(cycle.Recovery); !ok || score != 67 {
		t.Errorf("Recovery extraction = %v, %v", score, ok)
	}
}

func TestProfile(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_id":"u-123","first_name":"Ada","last_name":"Lovelace"}`))
	}))

	profile, err := client.Profile(context.Background(), "token")
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile.UserID != "u-123" {
		t.Errorf("UserID = %q", profile.UserID)
	}
	if profile.DisplayName() != "Ada Lovelace" {
		t.Errorf("DisplayName = %q", profile.DisplayName())
	}
}

func TestSleepRecordDurationDerivation(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	start := time.Date(2026, 8, 27, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record SleepRecord
		want   int
		wantOK bool
	}{
		{
			name: "stage minutes preferred",
			record: SleepRecord{
				Stages:       &SleepStages{LightMinutes: 200, DeepMinutes: 90, RemMinutes: 100},
				InBedMinutes: f(500), AwakeMinutes: f(40),
			},
			want:   390 * 60,
			wantOK: true,
		},
		{
			name: "in-bed minus awake when stages absent",
			record: SleepRecord{
				InBedMinutes: f(480), AwakeMinutes: f(50),
			},
			want:   430 * 60,
			wantOK: true,
		},
		{
			name: "zero stage total falls through",
			record: SleepRecord{
				Stages:       &SleepStages{},
				InBedMinutes: f(480), AwakeMinutes: f(50),
			},
			want:   430 * 60,
			wantOK: true,
		},
		{
			name: "timestamp delta as last resort",
			record: SleepRecord{
				Start: start,
				End:   start.Add(7 * time.Hour),
			},
			want:   7 * 3600,
			wantOK: true,
		},
		{
			name:   "nothing derivable",
			record: SleepRecord{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.record.DurationSeconds()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("duration = %d, want %d", got, tt.want)
			}
		})
	}
}
