package main

import (
	"testing"
)

func TestCreateExchangeValidation(t *testing.T) {
	h := newTestHub(t)
	teams := testTeams(t, h.store)

	tests := []struct {
		name string
		req  ExchangeCreateRequest
		code string
	}{
		{"missing ids", ExchangeCreateRequest{}, CodeValidation},
		{"self exchange", ExchangeCreateRequest{FromTeamID: teams[0].ID, ToTeamID: teams[0].ID}, CodeValidation},
		{"unknown initiator", ExchangeCreateRequest{FromTeamID: "nope", ToTeamID: teams[1].ID}, CodeNotFound},
		{"unknown counterparty", ExchangeCreateRequest{FromTeamID: teams[0].ID, ToTeamID: "nope"}, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.createExchange(&tt.req)
			if code := errorCode(t, err); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestCreateExchangeRequiresBalance(t *testing.T) {
	h := newTestHub(t)
	teams := testTeams(t, h.store)

	if err := h.store.AdjustPoints(teams[0].ID, -95, true); err != nil {
		t.Fatalf("AdjustPoints() error = %v", err)
	}

	_, err := h.createExchange(&ExchangeCreateRequest{FromTeamID: teams[0].ID, ToTeamID: teams[1].ID})
	if code := errorCode(t, err); code != CodeInsufficientPoints {
		t.Errorf("code = %q, want %q", code, CodeInsufficientPoints)
	}

	// The check reserves nothing: the initiator's balance is untouched.
	team, err := h.store.GetTeam(teams[0].ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if team.Points != 5 {
		t.Errorf("points = %d, want 5", team.Points)
	}
}

func TestExchangeLifecycle(t *testing.T) {
	h := newTestHub(t)
	teams := testTeams(t, h.store)

	data, err := h.createExchange(&ExchangeCreateRequest{FromTeamID: teams[0].ID, ToTeamID: teams[1].ID})
	if err != nil {
		t.Fatalf("createExchange() error = %v", err)
	}
	exchange, ok := data.(*ClueExchange)
	if !ok {
		t.Fatalf("createExchange() returned %T, want *ClueExchange", data)
	}
	if exchange.Status != "pending" {
		t.Errorf("status = %q, want pending", exchange.Status)
	}

	if _, err := h.acceptExchange(&ExchangeActRequest{ExchangeID: exchange.ID}); err != nil {
		t.Fatalf("acceptExchange() error = %v", err)
	}

	for _, id := range []string{teams[0].ID, teams[1].ID} {
		team, err := h.store.GetTeam(id)
		if err != nil {
			t.Fatalf("GetTeam() error = %v", err)
		}
		if team.Points != 90 {
			t.Errorf("points for %s = %d, want 90", team.Name, team.Points)
		}
	}

	// Terminal state: exactly one accept can succeed.
	_, err = h.acceptExchange(&ExchangeActRequest{ExchangeID: exchange.ID})
	if code := errorCode(t, err); code != CodeInvalidState {
		t.Errorf("second accept code = %q, want %q", code, CodeInvalidState)
	}

	_, err = h.rejectExchange(&ExchangeActRequest{ExchangeID: exchange.ID})
	if code := errorCode(t, err); code != CodeInvalidState {
		t.Errorf("reject after accept code = %q, want %q", code, CodeInvalidState)
	}
}

func TestHackClue(t *testing.T) {
	h := newTestHub(t)
	teams := testTeams(t, h.store)

	_, err := h.hackClue(&HackRequest{FromTeamID: teams[0].ID, TargetTeamID: teams[0].ID})
	if code := errorCode(t, err); code != CodeValidation {
		t.Errorf("self hack code = %q, want %q", code, CodeValidation)
	}

	if _, err := h.hackClue(&HackRequest{FromTeamID: teams[0].ID, TargetTeamID: teams[1].ID}); err != nil {
		t.Fatalf("hackClue() error = %v", err)
	}

	team, err := h.store.GetTeam(teams[0].ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if team.Points != 80 {
		t.Errorf("hacker points = %d, want 80", team.Points)
	}
}

func TestHackClueFallsBackToVisibleClue(t *testing.T) {
	h := newTestHub(t)
	startTestGame(t, h)
	teams := testTeams(t, h.store)

	// Remove the target's piratable rows so only the visible clue remains.
	if _, err := h.store.db.Exec(`DELETE FROM team_clues WHERE team_id = ?`, teams[1].ID); err != nil {
		t.Fatalf("delete target clues: %v", err)
	}

	data, err := h.hackClue(&HackRequest{FromTeamID: teams[0].ID, TargetTeamID: teams[1].ID})
	if err != nil {
		t.Fatalf("hackClue() error = %v", err)
	}

	result, ok := data.(map[string]any)
	if !ok {
		t.Fatalf("hackClue() returned %T, want map", data)
	}
	if result["clueText"] != teams[1].Clue {
		t.Errorf("hacked clue = %v, want visible clue %q", result["clueText"], teams[1].Clue)
	}
}

func TestHackClueNothingToTake(t *testing.T) {
	h := newTestHub(t)
	teams := testTeams(t, h.store)

	// No piratable rows and no visible clue (game not started).
	if _, err := h.store.db.Exec(`DELETE FROM team_clues WHERE team_id = ?`, teams[1].ID); err != nil {
		t.Fatalf("delete target clues: %v", err)
	}

	_, err := h.hackClue(&HackRequest{FromTeamID: teams[0].ID, TargetTeamID: teams[1].ID})
	if code := errorCode(t, err); code != CodeNotFound {
		t.Errorf("code = %q, want %q", code, CodeNotFound)
	}

	// Failed hacks are free.
	team, err := h.store.GetTeam(teams[0].ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if team.Points != 100 {
		t.Errorf("points = %d, want 100", team.Points)
	}
}

func TestBuyAnswerDefaultsCost(t *testing.T) {
	h := newTestHub(t)
	team := testTeams(t, h.store)[0]

	var caseID string
	if err := h.store.db.QueryRow(`SELECT id FROM cases LIMIT 1`).Scan(&caseID); err != nil {
		t.Fatalf("query case id: %v", err)
	}
	if err := h.store.InsertQuestion(Question{
		CaseID:         caseID,
		Phase:          3,
		QuestionText:   "Quel signe échographique recherchez-vous ?",
		ExpectedAnswer: "Image en cocarde",
	}); err != nil {
		t.Fatalf("InsertQuestion() error = %v", err)
	}
	var questionID string
	if err := h.store.db.QueryRow(`SELECT id FROM questions LIMIT 1`).Scan(&questionID); err != nil {
		t.Fatalf("query question id: %v", err)
	}

	if _, err := h.buyAnswer(&BuyAnswerRequest{TeamID: team.ID, QuestionID: questionID}); err != nil {
		t.Fatalf("buyAnswer() error = %v", err)
	}

	got, err := h.store.GetTeam(team.ID)
	if err != nil {
		t.Fatalf("GetTeam() error = %v", err)
	}
	if got.Points != 90 {
		t.Errorf("points = %d, want 90 (default cost applied)", got.Points)
	}

	_, err = h.buyAnswer(&BuyAnswerRequest{TeamID: team.ID, QuestionID: questionID, PointsSpent: -5})
	if code := errorCode(t, err); code != CodeValidation {
		t.Errorf("negative spend code = %q, want %q", code, CodeValidation)
	}
}
