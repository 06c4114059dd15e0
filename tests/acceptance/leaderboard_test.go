package acceptance

import (
	"encoding/json"
	"net/http"

	"github.com/pzhurov/fitrank/internal/domain"
	"github.com/pzhurov/fitrank/internal/dto"
)

func (s *Suite) getLeaderboard(query string) *domain.Leaderboard {
	resp, err := http.Get(s.BaseURL + "/api/v1/leaderboard" + query)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var board domain.Leaderboard
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&board))
	return &board
}

func (s *Suite) TestLeaderboard_EmptyWithoutMembers() {
	board := s.getLeaderboard("")
	s.Empty(board.Sleep)
	s.Empty(board.Recovery)
	s.Empty(board.Strain)
}

func (s *Suite) TestLeaderboard_RanksMembersDescending() {
	s.Provider.setMetrics("rt-alice", 12.5, 80)
	s.Provider.setMetrics("rt-bob", 15.1, 64)
	s.Provider.setSleep("rt-alice", sleepFixture{inBedMinutes: 480, awakeMinutes: 30, performancePct: 92})
	s.Provider.setSleep("rt-bob", sleepFixture{inBedMinutes: 420, awakeMinutes: 60, performancePct: 85})

	for _, req := range []dto.EnrollRequest{
		{ProviderUserID: "user-alice", DisplayName: "Alice", RefreshToken: "rt-alice"},
		{ProviderUserID: "user-bob", DisplayName: "Bob", RefreshToken: "rt-bob"},
	} {
		resp := s.enroll(req)
		resp.Body.Close()
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	board := s.getLeaderboard("")

	s.Require().Len(board.Strain, 2)
	s.Equal("Bob", board.Strain[0].DisplayName)
	s.InDelta(15.1, board.Strain[0].Value, 0.001)
	s.Equal("Alice", board.Strain[1].DisplayName)

	s.Require().Len(board.Recovery, 2)
	s.Equal("Alice", board.Recovery[0].DisplayName)
	s.InDelta(80, board.Recovery[0].Value, 0.001)

	s.Require().Len(board.Sleep, 2)
	s.Equal("Alice", board.Sleep[0].DisplayName)
	s.Equal((480-30)*60, board.Sleep[0].SleepSeconds)
}

func (s *Suite) TestLeaderboard_SecondPassServedFromCache() {
	s.Provider.setMetrics("rt-alice", 10, 70)
	resp := s.enroll(dto.EnrollRequest{ProviderUserID: "user-alice", DisplayName: "Alice", RefreshToken: "rt-alice"})
	resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	first := s.getLeaderboard("")
	s.Require().Len(first.Strain, 1)

	// The stub would now reject the credential, but a fresh cache means the
	// provider is never consulted.
	s.Provider.reject("rt-alice")

	second := s.getLeaderboard("")
	s.Require().Len(second.Strain, 1)
	s.InDelta(10, second.Strain[0].Value, 0.001)
}

func (s *Suite) TestLeaderboard_CredentialRejectedMemberIsRemoved() {
	s.Provider.reject("rt-gone")
	s.Provider.setMetrics("rt-bob", 9, 50)

	for _, req := range []dto.EnrollRequest{
		{ProviderUserID: "user-gone", DisplayName: "Gone", RefreshToken: "rt-gone"},
		{ProviderUserID: "user-bob", DisplayName: "Bob", RefreshToken: "rt-bob"},
	} {
		resp := s.enroll(req)
		resp.Body.Close()
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	board := s.getLeaderboard("")

	for _, e := range board.Strain {
		s.NotEqual("Gone", e.DisplayName)
	}
	s.Require().Len(board.Strain, 1)
	s.Equal("Bob", board.Strain[0].DisplayName)

	var count int
	s.Require().NoError(s.Postgres.DB.QueryRow(
		"SELECT COUNT(*) FROM members WHERE external_id = $1", "user-gone",
	).Scan(&count))
	s.Equal(0, count, "rejected member must be deleted")
}

func (s *Suite) TestLeaderboard_RejectsUnknownForceMode() {
	resp, err := http.Get(s.BaseURL + "/api/v1/leaderboard?force=bogus")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
