package main

import (
	"bytes"
	"encoding/json"
)

// Commands accepted from clients. Wire names are shared with the browser
// clients, so they stay stable even where Go naming would differ.
const (
	CmdAdminJoin        = "admin:join"
	CmdStartGame        = "admin:startGame"
	CmdNextPhase        = "admin:nextPhase"
	CmdResetGame        = "admin:resetGame"
	CmdAwardPoints      = "admin:awardPoints"
	CmdTeamJoin         = "team:join"
	CmdExchangeCreate   = "exchange:create"
	CmdExchangeAccept   = "exchange:accept"
	CmdExchangeReject   = "exchange:reject"
	CmdClueHack         = "clue:hack"
	CmdAnswerBuy        = "answer:buy"
	CmdDiagnosisSubmit  = "diagnosis:submit"
	CmdCommentSubmit    = "comment:submit"
	CmdCarePlanSubmit   = "priseEnCharge:submit"
	CmdBuzzPress        = "buzz:press"
	CmdBuzzNewQuestion  = "buzz:newQuestion"
	CmdBuzzNextInQueue  = "buzz:nextInQueue"
	CmdBuzzResetQueue   = "buzz:resetQueue"
	CmdBuzzRequestSync  = "buzz:requestSync"
	CmdPhase6Start      = "phase6:start"
	CmdPhase6Answer     = "phase6:answer"
	CmdPhase6NextQ      = "phase6:nextQuestion"
	CmdPhase6End        = "phase6:end"
)

// Events broadcast to clients.
const (
	EventResult           = "result"
	EventTeamsUpdated     = "teams:updated"
	EventSessionUpdated   = "session:updated"
	EventExchangesUpdated = "exchanges:updated"
	EventAnswersUpdated   = "answers:updated"
	EventCommentsUpdated  = "comments:updated"
	EventDiagnosisUpdated = "diagnosis:updated"
	EventCarePlanUpdated  = "priseEnCharge:updated"
	EventBuzzNewQuestion  = "buzz:newQuestion"
	EventBuzzQueue        = "buzz:updateQueue"
	EventPhase6Started    = "phase6:started"
	EventPhase6Question   = "phase6:newQuestion"
	EventPhase6Timer      = "phase6:timer"
	EventPhase6Team       = "phase6:teamUpdated"
	EventPhase6Admin      = "phase6:adminUpdate"
	EventPhase6Finished   = "phase6:finished"
	EventGameReset        = "game:reset"
)

// Envelope is the frame clients send. ID is echoed back on the result so the
// caller can match request and response.
type Envelope struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EventMessage is the frame pushed to clients for broadcast events.
type EventMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ResultMessage answers exactly one Envelope, sent to the caller only.
type ResultMessage struct {
	Type  string     `json:"type"`
	ID    string     `json:"id,omitempty"`
	OK    bool       `json:"ok"`
	Error *GameError `json:"error,omitempty"`
	Data  any        `json:"data,omitempty"`
}

// decodeRequest unmarshals a command payload, rejecting unknown fields and
// trailing garbage so optional-field typos surface as validation errors
// instead of silently defaulting.
func decodeRequest[T any](data json.RawMessage) (*T, error) {
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var req T
	if err := dec.Decode(&req); err != nil {
		return nil, errValidation("malformed request: " + err.Error())
	}
	if dec.More() {
		return nil, errValidation("malformed request: trailing data")
	}

	return &req, nil
}

type StartGameRequest struct {
	CaseID string `json:"caseId"`
}

type AwardPointsRequest struct {
	TeamID string `json:"teamId"`
	Points *int   `json:"points"`
}

type TeamJoinRequest struct {
	TeamID     string `json:"teamId"`
	MemberName string `json:"memberName"`
}

type ExchangeCreateRequest struct {
	FromTeamID string `json:"fromTeamId"`
	ToTeamID   string `json:"toTeamId"`
}

type ExchangeActRequest struct {
	ExchangeID string `json:"exchangeId"`
}

type HackRequest struct {
	FromTeamID   string `json:"fromTeamId"`
	TargetTeamID string `json:"targetTeamId"`
}

type BuyAnswerRequest struct {
	TeamID      string `json:"teamId"`
	QuestionID  string `json:"questionId"`
	Phase       int    `json:"phase"`
	PointsSpent int    `json:"pointsSpent"`
}

type DiagnosisRequest struct {
	TeamID    string `json:"teamId"`
	Diagnosis string `json:"diagnosis"`
}

type CommentRequest struct {
	TeamID  string `json:"teamId"`
	Comment string `json:"comment"`
}

type CarePlanRequest struct {
	TeamID  string `json:"teamId"`
	Content string `json:"content"`
}

type BuzzPressRequest struct {
	TeamID string `json:"teamId"`
}

type BuzzQuestionRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Phase6AnswerRequest struct {
	TeamID     string `json:"teamId"`
	QuestionID string `json:"questionId"`
	Answer     *bool  `json:"answer"`
}

// ClueView is a clue row as shown to clients; cost and piratability stay
// server-side.
type ClueView struct {
	ID       string `json:"id"`
	CaseID   string `json:"case_id"`
	ClueText string `json:"clue_text"`
}

// TeamView is the teams:updated payload, one entry per team.
type TeamView struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Points           int        `json:"points"`
	Clue             string     `json:"clue"`
	Members          []string   `json:"members"`
	Clues            []ClueView `json:"clues"`
	Phase6Lives      int        `json:"phase6_lives"`
	Phase6Score      int        `json:"phase6_score"`
	Phase6Eliminated bool       `json:"phase6_eliminated"`
}

func teamView(t Team, members []string, clues []TeamClue) TeamView {
	view := TeamView{
		ID:               t.ID,
		Name:             t.Name,
		Points:           t.Points,
		Clue:             t.Clue,
		Members:          members,
		Clues:            make([]ClueView, 0, len(clues)),
		Phase6Lives:      t.Phase6Lives,
		Phase6Score:      t.Phase6Score,
		Phase6Eliminated: t.Phase6Eliminated,
	}
	if view.Members == nil {
		view.Members = []string{}
	}
	for _, c := range clues {
		view.Clues = append(view.Clues, ClueView{ID: c.ID, CaseID: c.CaseID, ClueText: c.ClueText})
	}

	return view
}

type BuzzSyncData struct {
	Question *BuzzQuestion `json:"question"`
	Queue    []string      `json:"queue"`
}

type Phase6StartedData struct {
	TotalQuestions int `json:"totalQuestions"`
}

type Phase6QuestionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Phase6QuestionData struct {
	Index    int                `json:"index"`
	Total    int                `json:"total"`
	Question Phase6QuestionView `json:"question"`
}

type Phase6Result struct {
	Rank       int    `json:"rank"`
	TeamID     string `json:"team_id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Lives      int    `json:"lives"`
	Eliminated bool   `json:"eliminated"`
}

type Phase6FinishedData struct {
	Results []Phase6Result `json:"results"`
}
