package acceptance

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pzhurov/fitrank/internal/dto"
)

func (s *Suite) startSession(sessionID, refreshToken string) dto.SessionRefreshResponse {
	body, err := json.Marshal(dto.StartSessionRefreshRequest{RefreshToken: refreshToken})
	s.Require().NoError(err)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/sessions/"+sessionID+"/refresh",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var started dto.SessionRefreshResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&started))
	return started
}

func (s *Suite) sessionRequest(method, sessionID, token string) *http.Response {
	req, err := http.NewRequest(method, s.BaseURL+"/api/v1/sessions/"+sessionID+"/refresh", nil)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) TestSessionRefresh_Lifecycle() {
	started := s.startSession("sess-1", "rt-session")
	s.NotEmpty(started.SessionToken)
	s.Equal("Bearer", started.TokenType)

	// The 50ms test interval means a refresh lands almost immediately.
	var status dto.SessionStatusResponse
	s.Require().Eventually(func() bool {
		resp := s.sessionRequest(http.MethodGet, "sess-1", started.SessionToken)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		status = dto.SessionStatusResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return false
		}
		return status.Active && status.HasAccessToken
	}, 2*time.Second, 25*time.Millisecond)

	stopResp := s.sessionRequest(http.MethodDelete, "sess-1", started.SessionToken)
	stopResp.Body.Close()
	s.Equal(http.StatusOK, stopResp.StatusCode)

	// The control token is revoked along with the timer.
	afterResp := s.sessionRequest(http.MethodGet, "sess-1", started.SessionToken)
	defer afterResp.Body.Close()
	s.Equal(http.StatusUnauthorized, afterResp.StatusCode)
}

func (s *Suite) TestSessionRefresh_StatusRequiresToken() {
	s.startSession("sess-1", "rt-session")

	resp := s.sessionRequest(http.MethodGet, "sess-1", "")
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestSessionRefresh_TokenBoundToSession() {
	started := s.startSession("sess-1", "rt-session")
	s.startSession("sess-2", "rt-other")

	resp := s.sessionRequest(http.MethodGet, "sess-2", started.SessionToken)
	defer resp.Body.Close()
	s.Equal(http.StatusForbidden, resp.StatusCode)
}
