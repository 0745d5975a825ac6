package main

import (
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Seed(100); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	return s
}

func testTeams(t *testing.T, s *Store) []Team {
	t.Helper()

	teams, err := s.ListTeams()
	if err != nil {
		t.Fatalf("ListTeams() error = %v", err)
	}
	if len(teams) == 0 {
		t.Fatal("ListTeams() returned no teams")
	}

	return teams
}

func errorCode(t *testing.T, err error) string {
	t.Helper()

	var gameErr *GameError
	if !errors.As(err, &gameErr) {
		t.Fatalf("expected *GameError, got %T: %v", err, err)
	}

	return gameErr.Code
}

func TestSeedIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Seed(100); err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}

	teams := testTeams(t, s)
	if len(teams) != 4 {
		t.Errorf("team count after reseeding = %d, want 4", len(teams))
	}

	count, err := s.CountPhase6Questions()
	if err != nil {
		t.Fatalf("CountPhase6Questions() error = %v", err)
	}
	if count != len(defaultPhase6Questions) {
		t.Errorf("phase6 question count = %d, want %d", count, len(defaultPhase6Questions))
	}
}

func TestAdjustPoints(t *testing.T) {
	s := newTestStore(t)
	team := testTeams(t, s)[0]

	// Applied deltas sum; rejected operations contribute nothing.
	deltas := []struct {
		delta   int
		floor   bool
		applied bool
	}{
		{-30, true, true},
		{20, true, true},
		{-200, true, false},
		{-90, false, true},
		{50, true, true},
	}

	want := 100
	for _, d := range deltas {
		err := s.AdjustPoints(team.ID, d.delta, d.floor)
		if d.applied {
			if err != nil {
				t.Fatalf("AdjustPoints(%d) error = %v", d.delta, err)
			}
			want += d.delta
		} else {
			if code := errorCode(t, err); code != CodeInsufficientPoints {
				t.Fatalf("AdjustPoints(%d) code = %q, want %q", d.delta, code, CodeInsufficientPoints)
			}
		}
	}

	got, err := s.GetTeam(team.ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if got.Points != want {
		t.Errorf("points = %d, want %d", got.Points, want)
	}
}

func TestAdjustPointsUnknownTeam(t *testing.T) {
	s := newTestStore(t)

	err := s.AdjustPoints("nope", 10, false)
	if code := errorCode(t, err); code != CodeNotFound {
		t.Errorf("code = %q, want %q", code, CodeNotFound)
	}
}

func TestAddTeamMemberCap(t *testing.T) {
	s := newTestStore(t)
	team := testTeams(t, s)[0]

	for _, name := range []string{"Alice", "Benoît", "Chloé"} {
		if err := s.AddTeamMember(team.ID, name); err != nil {
			t.Fatalf("AddTeamMember(%q) error = %v", name, err)
		}
	}

	err := s.AddTeamMember(team.ID, "Damien")
	if code := errorCode(t, err); code != CodeInvalidState {
		t.Errorf("fourth member code = %q, want %q", code, CodeInvalidState)
	}

	members, err := s.teamMembers(team.ID)
	if err != nil {
		t.Fatalf("teamMembers() error = %v", err)
	}
	if len(members) != 3 {
		t.Errorf("member count = %d, want 3", len(members))
	}
}

func TestAcceptExchange(t *testing.T) {
	s := newTestStore(t)
	teams := testTeams(t, s)
	from, to := teams[0], teams[1]

	fromClues, err := s.TeamClues(from.ID)
	if err != nil {
		t.Fatalf("TeamClues() error = %v", err)
	}
	toClues, err := s.TeamClues(to.ID)
	if err != nil {
		t.Fatalf("TeamClues() error = %v", err)
	}

	ex, err := s.CreateExchange(from.ID, to.ID)
	if err != nil {
		t.Fatalf("CreateExchange() error = %v", err)
	}

	// Nothing is debited until acceptance.
	for _, id := range []string{from.ID, to.ID} {
		team, err := s.GetTeam(id)
		if err != nil {
			t.Fatalf("GetTeam() error = %v", err)
		}
		if team.Points != 100 {
			t.Fatalf("points before accept = %d, want 100", team.Points)
		}
	}

	if err := s.AcceptExchange(ex.ID, 10); err != nil {
		t.Fatalf("AcceptExchange() error = %v", err)
	}

	for _, id := range []string{from.ID, to.ID} {
		team, err := s.GetTeam(id)
		if err != nil {
			t.Fatalf("GetTeam() error = %v", err)
		}
		if team.Points != 90 {
			t.Errorf("points after accept = %d, want 90", team.Points)
		}
	}

	gotFrom, err := s.TeamClues(from.ID)
	if err != nil {
		t.Fatalf("TeamClues() error = %v", err)
	}
	gotTo, err := s.TeamClues(to.ID)
	if err != nil {
		t.Fatalf("TeamClues() error = %v", err)
	}
	if len(gotFrom) != len(toClues) || len(gotTo) != len(fromClues) {
		t.Fatalf("inventories not swapped: from has %d clues, to has %d", len(gotFrom), len(gotTo))
	}
	if gotFrom[0].ClueText != toClues[0].ClueText {
		t.Errorf("from team clue = %q, want %q", gotFrom[0].ClueText, toClues[0].ClueText)
	}

	// The pending-status check is single-use.
	err = s.AcceptExchange(ex.ID, 10)
	if code := errorCode(t, err); code != CodeInvalidState {
		t.Errorf("second accept code = %q, want %q", code, CodeInvalidState)
	}
}

func TestAcceptExchangeInsufficientPoints(t *testing.T) {
	s := newTestStore(t)
	teams := testTeams(t, s)
	from, to := teams[0], teams[1]

	if err := s.AdjustPoints(to.ID, -95, true); err != nil {
		t.Fatalf("AdjustPoints() error = %v", err)
	}

	ex, err := s.CreateExchange(from.ID, to.ID)
	if err != nil {
		t.Fatalf("CreateExchange() error = %v", err)
	}

	err = s.AcceptExchange(ex.ID, 10)
	if code := errorCode(t, err); code != CodeInsufficientPoints {
		t.Fatalf("code = %q, want %q", code, CodeInsufficientPoints)
	}

	// The failed accept must roll back entirely, leaving the exchange pending
	// and both balances untouched.
	exchanges, err := s.ListExchanges()
	if err != nil {
		t.Fatalf("ListExchanges() error = %v", err)
	}
	if exchanges[0].Status != "pending" {
		t.Errorf("status after failed accept = %q, want %q", exchanges[0].Status, "pending")
	}
	team, err := s.GetTeam(from.ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if team.Points != 100 {
		t.Errorf("initiator points = %d, want 100", team.Points)
	}
}

func TestRejectExchange(t *testing.T) {
	s := newTestStore(t)
	teams := testTeams(t, s)

	ex, err := s.CreateExchange(teams[0].ID, teams[1].ID)
	if err != nil {
		t.Fatalf("CreateExchange() error = %v", err)
	}

	if err := s.RejectExchange(ex.ID); err != nil {
		t.Fatalf("RejectExchange() error = %v", err)
	}

	err = s.AcceptExchange(ex.ID, 10)
	if code := errorCode(t, err); code != CodeInvalidState {
		t.Errorf("accept after reject code = %q, want %q", code, CodeInvalidState)
	}

	err = s.RejectExchange("nope")
	if code := errorCode(t, err); code != CodeNotFound {
		t.Errorf("unknown id code = %q, want %q", code, CodeNotFound)
	}
}

func TestBuyAnswer(t *testing.T) {
	s := newTestStore(t)
	team := testTeams(t, s)[0]

	var caseID string
	if err := s.db.QueryRow(`SELECT id FROM cases LIMIT 1`).Scan(&caseID); err != nil {
		t.Fatalf("query case id: %v", err)
	}

	question := Question{CaseID: caseID, Phase: 2, QuestionText: "Quel examen demandez-vous ?", ExpectedAnswer: "Échographie abdominale", Points: 10}
	if err := s.InsertQuestion(question); err != nil {
		t.Fatalf("InsertQuestion() error = %v", err)
	}

	var questionID string
	if err := s.db.QueryRow(`SELECT id FROM questions LIMIT 1`).Scan(&questionID); err != nil {
		t.Fatalf("query question id: %v", err)
	}

	answer, err := s.BuyAnswer(team.ID, questionID, 0, 10)
	if err != nil {
		t.Fatalf("BuyAnswer() error = %v", err)
	}
	if answer.Answer != "Échographie abdominale" {
		t.Errorf("answer = %q, want expected answer text", answer.Answer)
	}
	if answer.Phase != 2 {
		t.Errorf("phase = %d, want 2 (defaulted from question)", answer.Phase)
	}

	got, err := s.GetTeam(team.ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if got.Points != 90 {
		t.Errorf("points after purchase = %d, want 90", got.Points)
	}

	// Retries are rejected, not double-charged.
	_, err = s.BuyAnswer(team.ID, questionID, 0, 10)
	if code := errorCode(t, err); code != CodeDuplicate {
		t.Errorf("duplicate purchase code = %q, want %q", code, CodeDuplicate)
	}
	got, err = s.GetTeam(team.ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if got.Points != 90 {
		t.Errorf("points after rejected retry = %d, want 90", got.Points)
	}

	_, err = s.BuyAnswer("nope", questionID, 0, 10)
	if code := errorCode(t, err); code != CodeNotFound {
		t.Errorf("unknown team code = %q, want %q", code, CodeNotFound)
	}
}

func TestHackCluePreservesTarget(t *testing.T) {
	s := newTestStore(t)
	teams := testTeams(t, s)
	hacker, target := teams[0], teams[1]

	targetBefore, err := s.TeamClues(target.ID)
	if err != nil {
		t.Fatalf("TeamClues() error = %v", err)
	}
	hackerBefore, err := s.TeamClues(hacker.ID)
	if err != nil {
		t.Fatalf("TeamClues() error = %v", err)
	}

	clue, err := s.RandomPiratableClue(target.ID)
	if err != nil {
		t.Fatalf("RandomPiratableClue() error = %v", err)
	}
	if clue == nil {
		t.Fatal("RandomPiratableClue() returned nil for a seeded team")
	}

	if err := s.HackClue(hacker.ID, *clue, 20); err != nil {
		t.Fatalf("HackClue() error = %v", err)
	}

	targetAfter, err := s.TeamClues(target.ID)
	if err != nil {
		t.Fatalf("TeamClues() error = %v", err)
	}
	if len(targetAfter) != len(targetBefore) {
		t.Errorf("target clue count changed: %d -> %d", len(targetBefore), len(targetAfter))
	}

	hackerAfter, err := s.TeamClues(hacker.ID)
	if err != nil {
		t.Fatalf("TeamClues() error = %v", err)
	}
	if len(hackerAfter) != len(hackerBefore)+1 {
		t.Fatalf("hacker clue count = %d, want %d", len(hackerAfter), len(hackerBefore)+1)
	}

	var copied *TeamClue
	for i := range hackerAfter {
		if hackerAfter[i].ClueText == clue.ClueText && hackerAfter[i].ClueCost == 0 && !hackerAfter[i].IsPiratable {
			copied = &hackerAfter[i]
		}
	}
	if copied == nil {
		t.Error("hacked copy (cost 0, not piratable) not found in hacker inventory")
	}

	team, err := s.GetTeam(hacker.ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if team.Points != 80 {
		t.Errorf("hacker points = %d, want 80", team.Points)
	}
}

func TestResetGame(t *testing.T) {
	s := newTestStore(t)
	teams := testTeams(t, s)
	hacker, target := teams[0], teams[1]

	if err := s.AddTeamMember(hacker.ID, "Alice"); err != nil {
		t.Fatalf("AddTeamMember() error = %v", err)
	}

	clue, err := s.RandomPiratableClue(target.ID)
	if err != nil || clue == nil {
		t.Fatalf("RandomPiratableClue() = %v, %v", clue, err)
	}
	if err := s.HackClue(hacker.ID, *clue, 20); err != nil {
		t.Fatalf("HackClue() error = %v", err)
	}

	seedCount := func(teamID string) int {
		clues, err := s.TeamClues(teamID)
		if err != nil {
			t.Fatalf("TeamClues() error = %v", err)
		}
		n := 0
		for _, c := range clues {
			if c.IsPiratable {
				n++
			}
		}
		return n
	}
	before := seedCount(hacker.ID)

	if err := s.ResetGame(100); err != nil {
		t.Fatalf("ResetGame() error = %v", err)
	}

	// Pirate copies are gone, seed clues survive.
	clues, err := s.TeamClues(hacker.ID)
	if err != nil {
		t.Fatalf("TeamClues() error = %v", err)
	}
	if len(clues) != before {
		t.Errorf("clue count after reset = %d, want %d", len(clues), before)
	}
	for _, c := range clues {
		if !c.IsPiratable {
			t.Errorf("pirate copy survived reset: %q", c.ClueText)
		}
	}

	team, err := s.GetTeam(hacker.ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if team.Points != 100 {
		t.Errorf("points after reset = %d, want 100", team.Points)
	}

	members, err := s.teamMembers(hacker.ID)
	if err != nil {
		t.Fatalf("teamMembers() error = %v", err)
	}
	if len(members) != 0 {
		t.Errorf("members after reset = %d, want 0", len(members))
	}

	session, err := s.Session()
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if session.Status != "lobby" || session.CurrentPhase != 0 || session.CurrentCaseID != nil {
		t.Errorf("session after reset = %+v, want lobby/0/nil", session)
	}

	// Idempotent.
	if err := s.ResetGame(100); err != nil {
		t.Fatalf("second ResetGame() error = %v", err)
	}
}
