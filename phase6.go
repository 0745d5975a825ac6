package main

import (
	"fmt"
	"sort"
	"time"
)

// phase6Round is the transient state of one elimination round. The countdown
// is a single server-owned ticker so every team races the same clock; ticks
// are delivered into the hub loop and therefore serialize with answers. An
// answer handled before the tick that zeroes the clock counts, anything
// later takes the life penalty.
type phase6Round struct {
	generation      int
	index           int
	total           int
	question        *Phase6Question
	remaining       int
	timePerQuestion int
	stop            chan struct{}
}

// phase6Tick carries the generation of the round that produced it, so ticks
// from a stopped round are discarded instead of draining the next one.
type phase6Tick struct {
	generation int
}

type phase6TeamState struct {
	TeamID     string `json:"team_id"`
	Name       string `json:"name"`
	Lives      int    `json:"lives"`
	Score      int    `json:"score"`
	Eliminated bool   `json:"eliminated"`
}

type phase6TimerData struct {
	Remaining int `json:"remaining"`
}

// phase6Start resets every team's lives and score, clears old answer
// records, and presents the first question. Restarting mid-round discards
// the round in progress.
func (h *Hub) phase6Start() (any, error) {
	settings, err := h.store.Settings()
	if err != nil {
		return nil, err
	}

	total, err := h.store.CountPhase6Questions()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, errInvalidState("no questions configured")
	}

	h.stopPhase6Timer()
	if err := h.store.ResetPhase6(settings.LivesPerTeam); err != nil {
		return nil, err
	}
	if err := h.store.UpdateSession("phase6", 6, false); err != nil {
		return nil, err
	}

	h.phase6Gen++
	h.phase6 = &phase6Round{
		generation:      h.phase6Gen,
		total:           total,
		timePerQuestion: settings.TimePerQuestion,
		stop:            make(chan struct{}),
	}

	logf(h.cfg, "PHASE6: Round started with %d questions", total)

	h.broadcastSession()
	h.broadcastTeams()
	h.broadcast(EventMessage{Type: EventPhase6Started, Data: Phase6StartedData{TotalQuestions: total}})

	h.startPhase6Timer(h.phase6)
	h.presentQuestion(0)

	return Phase6StartedData{TotalQuestions: total}, nil
}

func (h *Hub) startPhase6Timer(r *phase6Round) {
	stop := r.stop
	gen := r.generation

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				select {
				case h.ticks <- phase6Tick{generation: gen}:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

func (h *Hub) stopPhase6Timer() {
	if h.phase6 != nil && h.phase6.stop != nil {
		close(h.phase6.stop)
		h.phase6.stop = nil
	}
}

// presentQuestion moves the round to the given question index, or ends the
// round if the bank is exhausted. A question that cannot be loaded is logged
// and skipped rather than left to stall the countdown.
func (h *Hub) presentQuestion(index int) {
	r := h.phase6
	if r == nil {
		return
	}

	for ; index < r.total; index++ {
		question, err := h.store.Phase6QuestionAt(index)
		if err != nil {
			logf(h.cfg, "PHASE6: Failed to load question %d: %v", index, err)
			continue
		}
		if question == nil {
			break
		}
		if question.QuestionText == "" {
			logf(h.cfg, "PHASE6: Skipping empty question %d", index)
			continue
		}

		r.index = index
		r.question = question
		r.remaining = r.timePerQuestion

		if err := h.store.SetPhase6Index(index); err != nil {
			logf(h.cfg, "PHASE6: Failed to persist question index: %v", err)
		}

		h.broadcast(EventMessage{Type: EventPhase6Question, Data: Phase6QuestionData{
			Index:    index,
			Total:    r.total,
			Question: Phase6QuestionView{ID: question.ID, Text: question.QuestionText},
		}})
		h.broadcast(EventMessage{Type: EventPhase6Timer, Data: phase6TimerData{Remaining: r.remaining}})

		return
	}

	h.finishRound()
}

// handlePhase6Tick runs inside the hub loop. When the clock reaches zero,
// every team without an answer on record loses a life, then the round moves
// on.
func (h *Hub) handlePhase6Tick(tick phase6Tick) {
	r := h.phase6
	if r == nil || tick.generation != r.generation || r.question == nil {
		return
	}

	r.remaining--
	h.broadcast(EventMessage{Type: EventPhase6Timer, Data: phase6TimerData{Remaining: r.remaining}})

	if r.remaining > 0 {
		return
	}

	silent, err := h.store.TeamsWithoutPhase6Answer(r.question.ID)
	if err != nil {
		logf(h.cfg, "PHASE6: Failed to list unanswered teams: %v", err)
	}
	for _, team := range silent {
		if team.Phase6Eliminated {
			continue
		}
		updated, err := h.store.DecrementPhase6Life(team.ID)
		if err != nil {
			logf(h.cfg, "PHASE6: Failed to penalize team %s: %v", team.ID, err)
			continue
		}
		h.broadcastPhase6Team(updated)
	}

	h.presentQuestion(r.index + 1)
}

// phase6Answer records a true/false answer against the active question.
// Right answers score, wrong answers cost a life, and an eliminated team can
// keep watching but no longer play.
func (h *Hub) phase6Answer(req *Phase6AnswerRequest) (any, error) {
	if req.TeamID == "" || req.QuestionID == "" {
		return nil, errValidation("teamId and questionId are required")
	}
	if req.Answer == nil {
		return nil, errValidation("answer is required")
	}

	r := h.phase6
	if r == nil || r.question == nil {
		return nil, errInvalidState("no round in progress")
	}
	if req.QuestionID != r.question.ID {
		return nil, errInvalidState("question is no longer active")
	}

	team, err := h.store.GetTeam(req.TeamID)
	if err != nil {
		return nil, err
	}
	if team.Phase6Eliminated {
		return nil, errInvalidState("team is eliminated")
	}

	answered, err := h.store.HasPhase6Answer(req.TeamID, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if answered {
		return nil, errDuplicate("team already answered this question")
	}

	correct := *req.Answer == r.question.CorrectAnswer
	if err := h.store.InsertPhase6Answer(req.TeamID, req.QuestionID, *req.Answer, correct); err != nil {
		return nil, err
	}

	var updated *Team
	if correct {
		updated, err = h.store.IncrementPhase6Score(req.TeamID)
	} else {
		updated, err = h.store.DecrementPhase6Life(req.TeamID)
	}
	if err != nil {
		return nil, err
	}

	outcome := "wrong"
	if correct {
		outcome = "correct"
	}
	logf(h.cfg, "PHASE6: Team %s answered question %d (%s)", req.TeamID, r.index, outcome)

	h.broadcastPhase6Team(updated)
	h.broadcastAdmins(EventMessage{Type: EventPhase6Admin, Data: map[string]any{
		"team_id":  updated.ID,
		"question": r.index,
		"correct":  correct,
	}})

	return map[string]any{"correct": correct}, nil
}

// phase6NextQuestion is the admin override for a question nobody wants to
// wait out.
func (h *Hub) phase6NextQuestion() (any, error) {
	r := h.phase6
	if r == nil {
		return nil, errInvalidState("no round in progress")
	}

	h.presentQuestion(r.index + 1)

	return nil, nil
}

func (h *Hub) phase6End() (any, error) {
	if h.phase6 == nil {
		return nil, errInvalidState("no round in progress")
	}

	h.finishRound()

	return nil, nil
}

// finishRound ranks the teams, persists a short written summary per team,
// and announces the results. Ranking order: score, then lives, then
// survivors before eliminated, then name.
func (h *Hub) finishRound() {
	r := h.phase6
	if r == nil {
		return
	}

	h.stopPhase6Timer()
	h.phase6 = nil

	teams, err := h.store.ListTeams()
	if err != nil {
		logf(h.cfg, "PHASE6: Failed to load teams for ranking: %v", err)
		return
	}

	results := rankPhase6(teams)
	for _, result := range results {
		if err := h.store.UpsertComment(result.TeamID, "phase6", phase6Summary(result)); err != nil {
			logf(h.cfg, "PHASE6: Failed to save summary for team %s: %v", result.TeamID, err)
		}
	}

	logf(h.cfg, "PHASE6: Round finished, %d teams ranked", len(results))

	h.broadcast(EventMessage{Type: EventPhase6Finished, Data: Phase6FinishedData{Results: results}})

	if comments, err := h.store.ListComments(); err == nil {
		h.broadcast(EventMessage{Type: EventCommentsUpdated, Data: comments})
	}
	h.broadcastTeams()
}

// rankPhase6 orders teams by score, then survivors before eliminated,
// then lives, then name, and assigns ranks.
func rankPhase6(teams []Team) []Phase6Result {
	sort.SliceStable(teams, func(i, j int) bool {
		a, b := teams[i], teams[j]
		if a.Phase6Score != b.Phase6Score {
			return a.Phase6Score > b.Phase6Score
		}
		if a.Phase6Eliminated != b.Phase6Eliminated {
			return !a.Phase6Eliminated
		}
		if a.Phase6Lives != b.Phase6Lives {
			return a.Phase6Lives > b.Phase6Lives
		}
		return a.Name < b.Name
	})

	results := make([]Phase6Result, 0, len(teams))
	for i, team := range teams {
		results = append(results, Phase6Result{
			Rank:       i + 1,
			TeamID:     team.ID,
			Name:       team.Name,
			Score:      team.Phase6Score,
			Lives:      team.Phase6Lives,
			Eliminated: team.Phase6Eliminated,
		})
	}

	return results
}

func phase6Summary(result Phase6Result) string {
	summary := fmt.Sprintf("%s termine %s avec %d bonne(s) réponse(s) et %d vie(s) restante(s).",
		result.Name, ordinalFR(result.Rank), result.Score, result.Lives)
	if result.Eliminated {
		summary += " Équipe éliminée avant la fin de la manche."
	} else {
		summary += " Équipe toujours en lice à la fin de la manche."
	}

	return summary
}

func ordinalFR(rank int) string {
	if rank == 1 {
		return "1re"
	}

	return fmt.Sprintf("%de", rank)
}

func (h *Hub) broadcastPhase6Team(team *Team) {
	h.broadcast(EventMessage{Type: EventPhase6Team, Data: phase6TeamState{
		TeamID:     team.ID,
		Name:       team.Name,
		Lives:      team.Phase6Lives,
		Score:      team.Phase6Score,
		Eliminated: team.Phase6Eliminated,
	}})
}

// syncPhase6 replays the active question and clock to a late joiner.
func (h *Hub) syncPhase6(c *Client) {
	r := h.phase6
	if r == nil || r.question == nil {
		return
	}

	h.sendTo(c, EventMessage{Type: EventPhase6Started, Data: Phase6StartedData{TotalQuestions: r.total}})
	h.sendTo(c, EventMessage{Type: EventPhase6Question, Data: Phase6QuestionData{
		Index:    r.index,
		Total:    r.total,
		Question: Phase6QuestionView{ID: r.question.ID, Text: r.question.QuestionText},
	}})
	h.sendTo(c, EventMessage{Type: EventPhase6Timer, Data: phase6TimerData{Remaining: r.remaining}})
}
