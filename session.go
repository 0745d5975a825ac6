package main

import (
	"fmt"
)

// Game phases run lobby → phase1..phase7 → finished, with a buzz interlude
// between every pair of numbered phases. The interlude is modeled as a
// toggled flag so current_phase keeps its business meaning throughout.
const (
	statusLobby    = "lobby"
	statusBuzz     = "buzz"
	statusFinished = "finished"

	lastPhase = 7
)

// startGame distributes the case's seed clues to teams in creation order
// (team i gets clue i mod the clue count) and moves the session to phase 1.
func (h *Hub) startGame(req *StartGameRequest) (any, error) {
	session, err := h.store.Session()
	if err != nil {
		return nil, err
	}
	if session.Status != statusLobby {
		return nil, errInvalidState("game already started")
	}

	caseID := req.CaseID
	if caseID == "" && session.CurrentCaseID != nil {
		caseID = *session.CurrentCaseID
	}
	if caseID == "" {
		return nil, errNotFound("no case selected")
	}

	if _, err := h.store.GetCase(caseID); err != nil {
		return nil, err
	}

	clues, err := h.store.CaseClues(caseID)
	if err != nil {
		return nil, err
	}
	if len(clues) == 0 {
		return nil, errInvalidState("case has no clues")
	}

	teams, err := h.store.ListTeams()
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, errInvalidState("no teams registered")
	}

	for i, team := range teams {
		clue := clues[i%len(clues)]
		if err := h.store.SetVisibleClue(team.ID, clue.ClueText); err != nil {
			return nil, err
		}
	}

	if err := h.store.SetSessionCase(caseID); err != nil {
		return nil, err
	}
	if err := h.store.UpdateSession("phase1", 1, false); err != nil {
		return nil, err
	}

	logf(h.cfg, "GAME: Started with case %s and %d teams", caseID, len(teams))

	h.broadcastSession()
	h.broadcastTeams()

	return nil, nil
}

// nextPhase alternates between the two tracks: first call interposes a buzz
// interlude without touching the phase counter, second call clears the flag
// and increments it.
func (h *Hub) nextPhase() (any, error) {
	session, err := h.store.Session()
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case statusLobby:
		return nil, errInvalidState("game not started")
	case statusFinished:
		return nil, errInvalidState("game already finished")
	}

	if !session.IsBuzzPhase {
		question, err := h.store.RandomBuzzQuestion()
		if err != nil {
			return nil, err
		}
		if question != nil {
			h.setBuzzQuestion(question)
			logf(h.cfg, "BUZZ: Interlude question %q", question.Question)
		}

		if err := h.store.UpdateSession(statusBuzz, session.CurrentPhase, true); err != nil {
			return nil, err
		}
		h.broadcastSession()

		return map[string]any{"buzz": true}, nil
	}

	next := session.CurrentPhase + 1
	status := fmt.Sprintf("phase%d", next)
	if next > lastPhase {
		status = statusFinished
	}

	if err := h.store.UpdateSession(status, next, false); err != nil {
		return nil, err
	}

	logf(h.cfg, "GAME: Advanced to %s", status)

	h.broadcastSession()
	h.broadcastTeams()

	return map[string]any{"phase": next}, nil
}

// resetGame returns everything to the lobby state. Safe to repeat.
func (h *Hub) resetGame() (any, error) {
	h.stopPhase6Timer()
	h.phase6 = nil

	if err := h.store.ResetGame(h.cfg.startingPoints); err != nil {
		return nil, err
	}

	h.buzzQuestion = nil
	h.buzzQueue = nil

	logf(h.cfg, "GAME: Reset to lobby")

	h.broadcast(EventMessage{Type: EventGameReset})
	h.broadcastSession()
	h.broadcastTeams()
	h.broadcastExchanges()
	h.broadcast(EventMessage{Type: EventBuzzNewQuestion, Data: nil})
	h.broadcast(EventMessage{Type: EventBuzzQueue, Data: []string{}})

	return nil, nil
}

// awardPoints is the admin override on the economy: same primitive as every
// other point mutation, but without the balance floor.
func (h *Hub) awardPoints(req *AwardPointsRequest) (any, error) {
	if req.TeamID == "" {
		return nil, errValidation("teamId is required")
	}
	if req.Points == nil {
		return nil, errValidation("points is required")
	}

	if _, err := h.store.GetTeam(req.TeamID); err != nil {
		return nil, err
	}
	if err := h.store.AdjustPoints(req.TeamID, *req.Points, false); err != nil {
		return nil, err
	}

	logf(h.cfg, "GAME: Awarded %+d points to team %s", *req.Points, req.TeamID)

	h.broadcastTeams()

	return nil, nil
}

func (h *Hub) joinTeam(req *TeamJoinRequest) (any, error) {
	if req.TeamID == "" || req.MemberName == "" {
		return nil, errValidation("teamId and memberName are required")
	}

	if _, err := h.store.GetTeam(req.TeamID); err != nil {
		return nil, err
	}
	if err := h.store.AddTeamMember(req.TeamID, req.MemberName); err != nil {
		return nil, err
	}

	h.broadcastTeams()

	return map[string]any{"teamId": req.TeamID}, nil
}

// Submissions are single-shot per team: a second submit updates the existing
// record instead of stacking a new one.

func (h *Hub) submitDiagnosis(req *DiagnosisRequest) (any, error) {
	if req.TeamID == "" || req.Diagnosis == "" {
		return nil, errValidation("teamId and diagnosis are required")
	}

	session, err := h.store.Session()
	if err != nil {
		return nil, err
	}
	if session.CurrentCaseID == nil {
		return nil, errInvalidState("no active case")
	}

	if _, err := h.store.GetTeam(req.TeamID); err != nil {
		return nil, err
	}
	if err := h.store.UpsertDiagnosis(req.TeamID, *session.CurrentCaseID, req.Diagnosis); err != nil {
		return nil, err
	}

	diagnoses, err := h.store.ListDiagnoses()
	if err != nil {
		return nil, err
	}
	h.broadcast(EventMessage{Type: EventDiagnosisUpdated, Data: diagnoses})

	return nil, nil
}

func (h *Hub) submitComment(req *CommentRequest) (any, error) {
	if req.TeamID == "" || req.Comment == "" {
		return nil, errValidation("teamId and comment are required")
	}

	if _, err := h.store.GetTeam(req.TeamID); err != nil {
		return nil, err
	}
	if err := h.store.UpsertComment(req.TeamID, "team", req.Comment); err != nil {
		return nil, err
	}

	comments, err := h.store.ListComments()
	if err != nil {
		return nil, err
	}
	h.broadcast(EventMessage{Type: EventCommentsUpdated, Data: comments})

	return nil, nil
}

func (h *Hub) submitCarePlan(req *CarePlanRequest) (any, error) {
	if req.TeamID == "" || req.Content == "" {
		return nil, errValidation("teamId and content are required")
	}

	if _, err := h.store.GetTeam(req.TeamID); err != nil {
		return nil, err
	}
	if err := h.store.UpsertCarePlan(req.TeamID, req.Content); err != nil {
		return nil, err
	}

	plans, err := h.store.ListCarePlans()
	if err != nil {
		return nil, err
	}
	h.broadcast(EventMessage{Type: EventCarePlanUpdated, Data: plans})

	return nil, nil
}
