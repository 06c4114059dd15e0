package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pzhurov/fitrank/internal/config"
)

// ErrCredentialRejected is returned when the provider reports the refresh
// token as invalid, expired or revoked. This condition is permanent; every
// other failure is transient and may succeed on a later attempt.
var ErrCredentialRejected = errors.New("provider rejected the credential")

const maxResponseBytes = 1 << 20

// TokenSet is the result of a refresh-token grant. RefreshToken is empty
// when the provider did not rotate; when set, callers must persist it and
// discard the old one.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ExpiresAt converts ExpiresIn into an absolute deadline.
func (t TokenSet) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Client is a stateless helper around the external fitness API. It never
// retries internally; retry policy belongs to the caller.
type Client struct {
	httpClient   *http.Client
	apiBaseURL   string
	tokenURL     string
	clientID     string
	clientSecret string
}

// NewClient creates a provider client from configuration
func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout.Duration},
		apiBaseURL:   strings.TrimSuffix(cfg.APIBaseURL, "/"),
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

type tokenErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RefreshAccessToken exchanges a refresh token for a fresh access token.
// A 400/401 response with an invalid-grant body yields ErrCredentialRejected;
// anything else (timeouts, 5xx, malformed payloads) is transient.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var tokens TokenSet
		if err := json.Unmarshal(body, &tokens); err != nil {
			return nil, fmt.Errorf("failed to decode token response: %w", err)
		}
		if tokens.AccessToken == "" {
			return nil, fmt.Errorf("token response missing access_token")
		}
		return &tokens, nil

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		var errBody tokenErrorBody
		_ = json.Unmarshal(body, &errBody)
		if errBody.Error == "invalid_grant" || strings.Contains(string(body), "invalid_grant") {
			return nil, fmt.Errorf("refresh token grant rejected (status %d): %w", resp.StatusCode, ErrCredentialRejected)
		}
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, errBody.Error)

	default:
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}
}

// FetchResource performs one authenticated GET against the API. No retries.
func (c *Client) FetchResource(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resource request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read resource response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d for %s", resp.StatusCode, path)
	}

	return body, nil
}

// SleepForDay fetches the day's sleep records.
func (c *Client) SleepForDay(ctx context.Context, accessToken string, date time.Time) ([]SleepRecord, error) {
	body, err := c.FetchResource(ctx, "/v1/activity/sleep?date="+date.Format("2006-01-02"), accessToken)
	if err != nil {
		return nil, err
	}

	var response sleepRecordsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode sleep records: %w", err)
	}

	return response.Records, nil
}

// RecoveryForDay fetches the day's recovery list as a raw payload. The shape
// varies across response variants, so interpretation is left to the
// recovery-score extractor.
func (c *Client) RecoveryForDay(ctx context.Context, accessToken string, date time.Time) (json.RawMessage, error) {
	return c.FetchResource(ctx, "/v1/recovery?date="+date.Format("2006-01-02"), accessToken)
}

// CycleForDay fetches the day's physiological cycle record.
func (c *Client) CycleForDay(ctx context.Context, accessToken string, date time.Time) (*CycleRecord, error) {
	body, err := c.FetchResource(ctx, "/v1/cycle?date="+date.Format("2006-01-02"), accessToken)
	if err != nil {
		return nil, err
	}

	var cycle CycleRecord
	if err := json.Unmarshal(body, &cycle); err != nil {
		return nil, fmt.Errorf("failed to decode cycle record: %w", err)
	}

	return &cycle, nil
}

// Profile fetches the authenticated user's profile. Used during enrollment
// and to identify which member an unlink request refers to.
func (c *Client) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	body, err := c.FetchResource(ctx, "/v1/user/profile", accessToken)
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if profile.UserID == "" {
		return nil, fmt.Errorf("profile response missing user_id")
	}

	return &profile, nil
}
