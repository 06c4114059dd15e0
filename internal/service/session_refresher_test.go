package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pzhurov/fitrank/internal/provider"
	"go.uber.org/zap"
)

// recordingRefresher captures the refresh tokens it was called with and
// hands back a scripted rotation chain.
type recordingRefresher struct {
	mu       sync.Mutex
	seen     []string
	rotateTo map[string]string
	err      error
}

func newRecordingRefresher() *recordingRefresher {
	return &recordingRefresher{rotateTo: make(map[string]string)}
}

func (r *recordingRefresher) RefreshAccessToken(ctx context.Context, refreshToken string) (*provider.TokenSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, refreshToken)
	if r.err != nil {
		return nil, r.err
	}
	set := &provider.TokenSet{
		AccessToken:  "access-" + refreshToken,
		RefreshToken: refreshToken,
		ExpiresIn:    3600,
	}
	if next, ok := r.rotateTo[refreshToken]; ok {
		set.RefreshToken = next
	}
	return set, nil
}

func (r *recordingRefresher) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSessionRefresherAdoptsRotatedToken(t *testing.T) {
	refresher := newRecordingRefresher()
	refresher.rotateTo["rt-1"] = "rt-2"

	sr := NewSessionRefresher(refresher, 10*time.Millisecond, zap.NewNop())
	sr.Start("s1", "rt-1")
	defer sr.StopAll()

	waitFor(t, time.Second, func() bool { return len(refresher.calls()) >= 2 })

	calls := refresher.calls()
	if calls[0] != "rt-1" {
		t.Errorf("first refresh used %q, want rt-1", calls[0])
	}
	if calls[1] != "rt-2" {
		t.Errorf("rotation not adopted: second refresh used %q, want rt-2", calls[1])
	}

	status, active := sr.Status("s1")
	if !active {
		t.Fatal("session should still be active")
	}
	if !status.HasAccessToken {
		t.Error("expected an access token after a successful refresh")
	}
}

func TestSessionRefresherStopIsIdempotent(t *testing.T) {
	refresher := newRecordingRefresher()
	sr := NewSessionRefresher(refresher, 10*time.Millisecond, zap.NewNop())

	sr.Start("s1", "rt-1")
	waitFor(t, time.Second, func() bool { return len(refresher.calls()) >= 1 })

	sr.Stop("s1")
	sr.Stop("s1")
	sr.Stop("never-started")

	if _, active := sr.Status("s1"); active {
		t.Error("stopped session must not report active")
	}

	// No refresh call may start after Stop returns.
	settled := len(refresher.calls())
	time.Sleep(50 * time.Millisecond)
	if got := len(refresher.calls()); got != settled {
		t.Errorf("refresh calls continued after stop: %d -> %d", settled, got)
	}
}

func TestSessionRefresherKeepsTokensOnFailure(t *testing.T) {
	refresher := newRecordingRefresher()
	sr := NewSessionRefresher(refresher, 10*time.Millisecond, zap.NewNop())
	sr.Start("s1", "rt-1")
	defer sr.StopAll()

	waitFor(t, time.Second, func() bool {
		status, _ := sr.Status("s1")
		return status.HasAccessToken
	})

	refresher.mu.Lock()
	refresher.err = errors.New("token endpoint returned status 502")
	refresher.mu.Unlock()

	before := len(refresher.calls())
	waitFor(t, time.Second, func() bool { return len(refresher.calls()) > before+1 })

	status, active := sr.Status("s1")
	if !active {
		t.Fatal("transient failures must not unregister the session")
	}
	if !status.HasAccessToken {
		t.Error("a failed refresh must keep the last good access token")
	}
}

func TestSessionRefresherRestartReplacesHandle(t *testing.T) {
	refresher := newRecordingRefresher()
	sr := NewSessionRefresher(refresher, 10*time.Millisecond, zap.NewNop())
	defer sr.StopAll()

	sr.Start("s1", "rt-a")
	waitFor(t, time.Second, func() bool { return len(refresher.calls()) >= 1 })

	sr.Start("s1", "rt-b")
	waitFor(t, time.Second, func() bool {
		for _, c := range refresher.calls() {
			if c == "rt-b" {
				return true
			}
		}
		return false
	})

	if _, active := sr.Status("s1"); !active {
		t.Error("restarted session must be active under the new handle")
	}
}
