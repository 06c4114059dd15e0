package acceptance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// providerStub is a scriptable stand-in for the fitness provider. Behavior
// keys off the refresh token presented at the token endpoint; access tokens
// it mints carry that key so resource endpoints can answer per member.
type providerStub struct {
	server *httptest.Server

	mu       sync.Mutex
	rejected map[string]bool
	strain   map[string]float64
	recovery map[string]float64
	sleep    map[string]sleepFixture
	profiles map[string]string
}

type sleepFixture struct {
	inBedMinutes   float64
	awakeMinutes   float64
	performancePct float64
}

func newProviderStub() *providerStub {
	p := &providerStub{
		rejected: make(map[string]bool),
		strain:   make(map[string]float64),
		recovery: make(map[string]float64),
		sleep:    make(map[string]sleepFixture),
		profiles: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", p.handleToken)
	mux.HandleFunc("/v1/activity/sleep", p.handleSleep)
	mux.HandleFunc("/v1/recovery", p.handleRecovery)
	mux.HandleFunc("/v1/cycle", p.handleCycle)
	mux.HandleFunc("/v1/user/profile", p.handleProfile)

	p.server = httptest.NewServer(mux)
	return p
}

func (p *providerStub) Close() {
	p.server.Close()
}

func (p *providerStub) URL() string {
	return p.server.URL
}

func (p *providerStub) TokenURL() string {
	return p.server.URL + "/oauth/token"
}

func (p *providerStub) reject(refreshToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected[refreshToken] = true
}

func (p *providerStub) setMetrics(refreshToken string, strain, recovery float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strain[refreshToken] = strain
	p.recovery[refreshToken] = recovery
}

func (p *providerStub) setSleep(refreshToken string, fixture sleepFixture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sleep[refreshToken] = fixture
}

func (p *providerStub) setProfile(accessToken, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[accessToken] = userID
}

func (p *providerStub) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	refreshToken := r.PostFormValue("refresh_token")

	p.mu.Lock()
	rejected := p.rejected[refreshToken]
	p.mu.Unlock()

	if rejected {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant", "error_description": "refresh token revoked"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "access-" + refreshToken,
		"refresh_token": refreshToken,
		"expires_in":    3600,
		"token_type":    "Bearer",
	})
}

// tokenKey recovers the refresh-token key from the Authorization header.
func (p *providerStub) tokenKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(strings.TrimPrefix(auth, "Bearer "), "access-")
}

func (p *providerStub) handleSleep(w http.ResponseWriter, r *http.Request) {
	key := p.tokenKey(r)

	p.mu.Lock()
	fixture, ok := p.sleep[key]
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		fmt.Fprint(w, `{"records": []}`)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"records": []map[string]any{
			{
				"in_bed_minutes":  fixture.inBedMinutes,
				"awake_minutes":   fixture.awakeMinutes,
				"performance_pct": fixture.performancePct,
			},
		},
	})
}

func (p *providerStub) handleRecovery(w http.ResponseWriter, r *http.Request) {
	key := p.tokenKey(r)

	p.mu.Lock()
	score, ok := p.recovery[key]
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		fmt.Fprint(w, `{}`)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"recovery": map[string]any{"score": score},
	})
}

func (p *providerStub) handleCycle(w http.ResponseWriter, r *http.Request) {
	key := p.tokenKey(r)

	p.mu.Lock()
	strain, ok := p.strain[key]
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		fmt.Fprint(w, `{}`)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"strain": strain})
}

func (p *providerStub) handleProfile(w http.ResponseWriter, r *http.Request) {
	auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	p.mu.Lock()
	userID, ok := p.profiles[auth]
	p.mu.Unlock()

	if !ok {
		http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"user_id": userID})
}
