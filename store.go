/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store wraps the game database. All mutations funnel through the hub's run
// loop, and the connection pool is capped at a single connection, so every
// write is serialized twice over.
type Store struct {
	db *sql.DB
}

type Team struct {
	ID               string
	Name             string
	Points           int
	Clue             string
	Phase6Lives      int
	Phase6Score      int
	Phase6Eliminated bool
	CreatedAt        time.Time
}

type Case struct {
	ID          string
	Title       string
	Description string
}

type TeamClue struct {
	ID          string
	TeamID      string
	CaseID      string
	ClueText    string
	ClueCost    int
	IsPiratable bool
}

type ClueExchange struct {
	ID         string `json:"id"`
	FromTeamID string `json:"from_team_id"`
	ToTeamID   string `json:"to_team_id"`
	Status     string `json:"status"`
}

type Question struct {
	ID             string
	CaseID         string
	Phase          int
	QuestionText   string
	ExpectedAnswer string
	Points         int
}

type PhaseAnswer struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	QuestionID  string `json:"question_id"`
	Phase       int    `json:"phase"`
	Answer      string `json:"answer"`
	PointsSpent int    `json:"points_spent"`
}

type Submission struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Text   string `json:"text"`
}

type Comment struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Kind   string `json:"kind"`
	Text   string `json:"comment"`
}

type Phase6Question struct {
	ID            string
	QuestionText  string
	CorrectAnswer bool
	OrderIndex    int
}

type BuzzQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type GameSession struct {
	Status         string  `json:"status"`
	CurrentPhase   int     `json:"current_phase"`
	CurrentCaseID  *string `json:"current_case_id"`
	IsBuzzPhase    bool    `json:"is_buzz_phase"`
	Phase6Question int     `json:"phase6_current_question"`
}

type GameSettings struct {
	BuyAnswerCost   int
	ExchangeCost    int
	HackCost        int
	TimePerQuestion int
	LivesPerTeam    int
}

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	points INTEGER NOT NULL DEFAULT 100,
	clue TEXT NOT NULL DEFAULT '',
	phase6_lives INTEGER NOT NULL DEFAULT 3,
	phase6_score INTEGER NOT NULL DEFAULT 0,
	phase6_eliminated INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS team_members (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	member_name TEXT NOT NULL,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cases (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	clinical_description TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS team_clues (
	id TEXT PRIMARY KEY,
	team_id TEXT REFERENCES teams(id) ON DELETE CASCADE,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	clue_text TEXT NOT NULL,
	clue_cost INTEGER NOT NULL DEFAULT 10,
	is_piratable INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS clue_exchanges (
	id TEXT PRIMARY KEY,
	from_team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	to_team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'accepted', 'rejected')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	phase INTEGER NOT NULL,
	question_text TEXT NOT NULL,
	expected_answer TEXT NOT NULL,
	points INTEGER NOT NULL DEFAULT 10,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS phase_answers (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	phase INTEGER NOT NULL,
	answer TEXT NOT NULL,
	points_spent INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (team_id, question_id)
);

CREATE TABLE IF NOT EXISTS phase5_responses (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	response_text TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (team_id, case_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	kind TEXT NOT NULL DEFAULT 'team' CHECK (kind IN ('team', 'phase6')),
	comment TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (team_id, kind)
);

CREATE TABLE IF NOT EXISTS prise_en_charge (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (team_id)
);

CREATE TABLE IF NOT EXISTS phase6_questions (
	id TEXT PRIMARY KEY,
	question_text TEXT NOT NULL,
	correct_answer INTEGER NOT NULL,
	order_index INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS phase6_answers (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	question_id TEXT NOT NULL REFERENCES phase6_questions(id) ON DELETE CASCADE,
	answer INTEGER NOT NULL,
	is_correct INTEGER NOT NULL DEFAULT 0,
	UNIQUE (team_id, question_id)
);

CREATE TABLE IF NOT EXISTS buzz_questions (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	answer TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS game_session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	status TEXT NOT NULL DEFAULT 'lobby',
	current_phase INTEGER NOT NULL DEFAULT 0,
	current_case_id TEXT REFERENCES cases(id),
	is_buzz_phase INTEGER NOT NULL DEFAULT 0,
	phase6_current_question INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS game_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	buy_answer_cost INTEGER NOT NULL DEFAULT 10,
	exchange_cost INTEGER NOT NULL DEFAULT 10,
	hack_cost INTEGER NOT NULL DEFAULT 20,
	time_per_question INTEGER NOT NULL DEFAULT 15,
	lives_per_team INTEGER NOT NULL DEFAULT 3
);
`

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; a one-connection pool avoids SQLITE_BUSY
	// and keeps in-memory databases coherent under test.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func newID() string {
	return uuid.NewString()
}

// Seed inserts the singleton session and settings rows, a default roster of
// four teams, and the default clinical case with one clue per team. Safe to
// call on every start.
func (s *Store) Seed(startingPoints int) error {
	var count int

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM game_session WHERE id = 1`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := s.db.Exec(`INSERT INTO game_session (id, status, current_phase) VALUES (1, 'lobby', 0)`); err != nil {
			return err
		}
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM game_settings WHERE id = 1`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := s.db.Exec(`INSERT INTO game_settings (id) VALUES (1)`); err != nil {
			return err
		}
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM teams`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		for _, name := range []string{"Équipe 1", "Équipe 2", "Équipe 3", "Équipe 4"} {
			if _, err := s.db.Exec(`INSERT INTO teams (id, name, points) VALUES (?, ?, ?)`,
				newID(), name, startingPoints); err != nil {
				return err
			}
		}
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cases`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if err := s.seedDefaultCase(); err != nil {
			return err
		}
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM buzz_questions`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		for _, q := range defaultBuzzQuestions {
			if _, err := s.db.Exec(`INSERT INTO buzz_questions (id, question, answer) VALUES (?, ?, ?)`,
				newID(), q.Question, q.Answer); err != nil {
				return err
			}
		}
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM phase6_questions`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		for i, q := range defaultPhase6Questions {
			if err := s.InsertPhase6Question(Phase6Question{
				QuestionText:  q.QuestionText,
				CorrectAnswer: q.CorrectAnswer,
				OrderIndex:    i,
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

var defaultPhase6Questions = []Phase6Question{
	{QuestionText: "L'invagination intestinale aiguë touche surtout les enfants de moins de 3 ans.", CorrectAnswer: true},
	{QuestionText: "Les rectorragies en gelée de groseille sont un signe tardif.", CorrectAnswer: true},
	{QuestionText: "Le traitement de première intention est toujours chirurgical.", CorrectAnswer: false},
	{QuestionText: "L'échographie abdominale est l'examen de référence pour le diagnostic.", CorrectAnswer: true},
	{QuestionText: "Une invagination réduite ne peut jamais récidiver.", CorrectAnswer: false},
	{QuestionText: "L'image en cocarde à l'échographie est caractéristique.", CorrectAnswer: true},
	{QuestionText: "Le lavement thérapeutique est contre-indiqué en cas de perforation.", CorrectAnswer: true},
	{QuestionText: "Les douleurs évoluent de façon continue, sans intervalle libre.", CorrectAnswer: false},
}

var defaultBuzzQuestions = []BuzzQuestion{
	{Question: "On me casse quand on me prononce. Qui suis-je ?", Answer: "Le silence"},
	{Question: "Quelle est la capitale de la Corée du Sud ?", Answer: "Séoul"},
	{Question: "Quel scientifique a proposé la théorie de la relativité ?", Answer: "Albert Einstein"},
	{Question: "Quel est le plus petit pays du monde ?", Answer: "Le Vatican"},
	{Question: "Quel compositeur est devenu sourd mais a continué à composer ?", Answer: "Beethoven"},
}

func (s *Store) seedDefaultCase() error {
	caseID := newID()
	_, err := s.db.Exec(`INSERT INTO cases (id, title, clinical_description) VALUES (?, ?, ?)`,
		caseID,
		"Invagination intestinale aiguë",
		"Enfant de 2 ans présentant des douleurs abdominales aiguës, vomissements et rectorragies.")
	if err != nil {
		return err
	}

	clues := []struct {
		text string
		cost int
	}{
		{"Enfant de 2 ans", 0},
		{"Vomissements répétés", 10},
		{"Rectorragies en gelée de groseille", 10},
		{"Douleurs abdominales paroxystiques", 10},
	}

	teams, err := s.ListTeams()
	if err != nil {
		return err
	}

	// Seed clues are all piratable; pirate copies are inserted with
	// is_piratable = 0, which is what distinguishes them at reset time.
	for i, team := range teams {
		clue := clues[i%len(clues)]
		_, err := s.db.Exec(`INSERT INTO team_clues (id, team_id, case_id, clue_text, clue_cost, is_piratable)
			VALUES (?, ?, ?, ?, ?, 1)`,
			newID(), team.ID, caseID, clue.text, clue.cost)
		if err != nil {
			return err
		}
	}

	return nil
}

// ---- Teams ----

func (s *Store) ListTeams() ([]Team, error) {
	rows, err := s.db.Query(`SELECT id, name, points, clue, phase6_lives, phase6_score, phase6_eliminated, created_at
		FROM teams ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Points, &t.Clue,
			&t.Phase6Lives, &t.Phase6Score, &t.Phase6Eliminated, &t.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}

	return teams, rows.Err()
}

func (s *Store) GetTeam(id string) (*Team, error) {
	var t Team
	err := s.db.QueryRow(`SELECT id, name, points, clue, phase6_lives, phase6_score, phase6_eliminated, created_at
		FROM teams WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Points, &t.Clue,
			&t.Phase6Lives, &t.Phase6Score, &t.Phase6Eliminated, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("team not found")
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// AdjustPoints applies delta to a team's balance. With enforceFloor set, the
// check and the write are a single conditional UPDATE, so two concurrent
// spends cannot both pass the balance check.
func (s *Store) AdjustPoints(teamID string, delta int, enforceFloor bool) error {
	var (
		res sql.Result
		err error
	)

	if enforceFloor {
		res, err = s.db.Exec(`UPDATE teams SET points = points + ? WHERE id = ? AND points + ? >= 0`,
			delta, teamID, delta)
	} else {
		res, err = s.db.Exec(`UPDATE teams SET points = points + ? WHERE id = ?`, delta, teamID)
	}
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetTeam(teamID); err != nil {
			return err
		}
		return errInsufficientPoints("not enough points")
	}

	return nil
}

func (s *Store) SetVisibleClue(teamID, clue string) error {
	_, err := s.db.Exec(`UPDATE teams SET clue = ? WHERE id = ?`, clue, teamID)
	return err
}

// AddTeamMember enforces the three-member cap inside one transaction.
func (s *Store) AddTeamMember(teamID, memberName string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM team_members WHERE team_id = ?`, teamID).Scan(&count); err != nil {
		return err
	}
	if count >= 3 {
		return errInvalidState("team is full")
	}

	if _, err := tx.Exec(`INSERT INTO team_members (team_id, member_name) VALUES (?, ?)`, teamID, memberName); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) teamMembers(teamID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT member_name FROM team_members WHERE team_id = ? ORDER BY joined_at ASC, id ASC`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		members = append(members, name)
	}

	return members, rows.Err()
}

// ---- Session and settings ----

func (s *Store) Session() (*GameSession, error) {
	var (
		sess   GameSession
		caseID sql.NullString
	)
	err := s.db.QueryRow(`SELECT status, current_phase, current_case_id, is_buzz_phase, phase6_current_question
		FROM game_session WHERE id = 1`).
		Scan(&sess.Status, &sess.CurrentPhase, &caseID, &sess.IsBuzzPhase, &sess.Phase6Question)
	if err != nil {
		return nil, err
	}
	if caseID.Valid {
		sess.CurrentCaseID = &caseID.String
	}

	return &sess, nil
}

func (s *Store) UpdateSession(status string, phase int, buzz bool) error {
	_, err := s.db.Exec(`UPDATE game_session
		SET status = ?, current_phase = ?, is_buzz_phase = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`, status, phase, buzz)
	return err
}

func (s *Store) SetSessionCase(caseID string) error {
	_, err := s.db.Exec(`UPDATE game_session SET current_case_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`, caseID)
	return err
}

func (s *Store) SetPhase6Index(index int) error {
	_, err := s.db.Exec(`UPDATE game_session SET phase6_current_question = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`, index)
	return err
}

func (s *Store) Settings() (*GameSettings, error) {
	var cfg GameSettings
	err := s.db.QueryRow(`SELECT buy_answer_cost, exchange_cost, hack_cost, time_per_question, lives_per_team
		FROM game_settings WHERE id = 1`).
		Scan(&cfg.BuyAnswerCost, &cfg.ExchangeCost, &cfg.HackCost, &cfg.TimePerQuestion, &cfg.LivesPerTeam)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ---- Cases and clues ----

func (s *Store) GetCase(id string) (*Case, error) {
	var c Case
	err := s.db.QueryRow(`SELECT id, title, clinical_description FROM cases WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("case not found")
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// CaseClues returns the seed clues of a case in insertion order, the order
// used for distribution at game start. Pirate copies are excluded so a hack
// never shifts the distribution.
func (s *Store) CaseClues(caseID string) ([]TeamClue, error) {
	rows, err := s.db.Query(`SELECT id, team_id, case_id, clue_text, clue_cost, is_piratable
		FROM team_clues WHERE case_id = ? AND (clue_cost > 0 OR is_piratable = 1)
		ORDER BY rowid ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanClues(rows)
}

func (s *Store) TeamClues(teamID string) ([]TeamClue, error) {
	rows, err := s.db.Query(`SELECT id, team_id, case_id, clue_text, clue_cost, is_piratable
		FROM team_clues WHERE team_id = ? ORDER BY rowid ASC`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanClues(rows)
}

func scanClues(rows *sql.Rows) ([]TeamClue, error) {
	var clues []TeamClue
	for rows.Next() {
		var (
			c      TeamClue
			teamID sql.NullString
		)
		if err := rows.Scan(&c.ID, &teamID, &c.CaseID, &c.ClueText, &c.ClueCost, &c.IsPiratable); err != nil {
			return nil, err
		}
		c.TeamID = teamID.String
		clues = append(clues, c)
	}

	return clues, rows.Err()
}

// RandomPiratableClue returns nil without error when the target holds no
// piratable clue rows.
func (s *Store) RandomPiratableClue(teamID string) (*TeamClue, error) {
	var c TeamClue
	err := s.db.QueryRow(`SELECT id, team_id, case_id, clue_text, clue_cost, is_piratable
		FROM team_clues WHERE team_id = ? AND is_piratable = 1 ORDER BY RANDOM() LIMIT 1`, teamID).
		Scan(&c.ID, &c.TeamID, &c.CaseID, &c.ClueText, &c.ClueCost, &c.IsPiratable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (s *Store) InsertTeamClue(c TeamClue) error {
	if c.ID == "" {
		c.ID = newID()
	}
	_, err := s.db.Exec(`INSERT INTO team_clues (id, team_id, case_id, clue_text, clue_cost, is_piratable)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.TeamID, c.CaseID, c.ClueText, c.ClueCost, c.IsPiratable)
	return err
}

// HackClue debits the hacker and records their copy of the clue in one
// transaction. The copy costs nothing and cannot be hacked again, which is
// how it is told apart from seed clues later.
func (s *Store) HackClue(fromTeamID string, clue TeamClue, cost int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE teams SET points = points - ? WHERE id = ? AND points >= ?`,
		cost, fromTeamID, cost)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errInsufficientPoints("not enough points")
	}

	if _, err := tx.Exec(`INSERT INTO team_clues (id, team_id, case_id, clue_text, clue_cost, is_piratable)
		VALUES (?, ?, ?, ?, 0, 0)`,
		newID(), fromTeamID, clue.CaseID, clue.ClueText); err != nil {
		return err
	}

	return tx.Commit()
}

// ---- Exchanges ----

func (s *Store) CreateExchange(fromTeamID, toTeamID string) (*ClueExchange, error) {
	ex := ClueExchange{
		ID:         newID(),
		FromTeamID: fromTeamID,
		ToTeamID:   toTeamID,
		Status:     "pending",
	}
	_, err := s.db.Exec(`INSERT INTO clue_exchanges (id, from_team_id, to_team_id, status) VALUES (?, ?, ?, 'pending')`,
		ex.ID, ex.FromTeamID, ex.ToTeamID)
	if err != nil {
		return nil, err
	}

	return &ex, nil
}

func (s *Store) ListExchanges() ([]ClueExchange, error) {
	rows, err := s.db.Query(`SELECT id, from_team_id, to_team_id, status FROM clue_exchanges ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []ClueExchange
	for rows.Next() {
		var ex ClueExchange
		if err := rows.Scan(&ex.ID, &ex.FromTeamID, &ex.ToTeamID, &ex.Status); err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}

	return exchanges, rows.Err()
}

// AcceptExchange settles a pending exchange in a single transaction: the
// conditional status flip is the single-use lock, both balances are
// re-validated, the two teams' full clue inventories are swapped, and both
// sides pay the exchange cost.
func (s *Store) AcceptExchange(exchangeID string, cost int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE clue_exchanges
		SET status = 'accepted', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'`, exchangeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var status string
		err := tx.QueryRow(`SELECT status FROM clue_exchanges WHERE id = ?`, exchangeID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("exchange not found")
		}
		if err != nil {
			return err
		}
		return errInvalidState("exchange already " + status)
	}

	var fromTeamID, toTeamID string
	if err := tx.QueryRow(`SELECT from_team_id, to_team_id FROM clue_exchanges WHERE id = ?`, exchangeID).
		Scan(&fromTeamID, &toTeamID); err != nil {
		return err
	}

	for _, teamID := range []string{fromTeamID, toTeamID} {
		res, err := tx.Exec(`UPDATE teams SET points = points - ? WHERE id = ? AND points >= ?`,
			cost, teamID, cost)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errInsufficientPoints("a team cannot afford the exchange")
		}
	}

	// Full inventory swap, every case included.
	if _, err := tx.Exec(`UPDATE team_clues
		SET team_id = CASE team_id WHEN ? THEN ? ELSE ? END
		WHERE team_id IN (?, ?)`,
		fromTeamID, toTeamID, fromTeamID, fromTeamID, toTeamID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) RejectExchange(exchangeID string) error {
	res, err := s.db.Exec(`UPDATE clue_exchanges
		SET status = 'rejected', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'`, exchangeID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var status string
		err := s.db.QueryRow(`SELECT status FROM clue_exchanges WHERE id = ?`, exchangeID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("exchange not found")
		}
		if err != nil {
			return err
		}
		return errInvalidState("exchange already " + status)
	}

	return nil
}

// ---- Purchased answers ----

func (s *Store) GetQuestion(id string) (*Question, error) {
	var q Question
	err := s.db.QueryRow(`SELECT id, case_id, phase, question_text, expected_answer, points FROM questions WHERE id = ?`, id).
		Scan(&q.ID, &q.CaseID, &q.Phase, &q.QuestionText, &q.ExpectedAnswer, &q.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("question not found")
	}
	if err != nil {
		return nil, err
	}

	return &q, nil
}

func (s *Store) InsertQuestion(q Question) error {
	if q.ID == "" {
		q.ID = newID()
	}
	_, err := s.db.Exec(`INSERT INTO questions (id, case_id, phase, question_text, expected_answer, points)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.CaseID, q.Phase, q.QuestionText, q.ExpectedAnswer, q.Points)
	return err
}

// BuyAnswer records an answer purchase: duplicate-guarded per team and
// question, debit and insert in one transaction.
func (s *Store) BuyAnswer(teamID, questionID string, phase, pointsSpent int) (*PhaseAnswer, error) {
	question, err := s.GetQuestion(questionID)
	if err != nil {
		return nil, err
	}
	if phase <= 0 {
		phase = question.Phase
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM phase_answers WHERE team_id = ? AND question_id = ?`,
		teamID, questionID).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errDuplicate("answer already purchased")
	}

	res, err := tx.Exec(`UPDATE teams SET points = points - ? WHERE id = ? AND points >= ?`,
		pointsSpent, teamID, pointsSpent)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM teams WHERE id = ?`, teamID).Scan(&exists); err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, errNotFound("team not found")
		}
		return nil, errInsufficientPoints("not enough points")
	}

	pa := PhaseAnswer{
		ID:          newID(),
		TeamID:      teamID,
		QuestionID:  questionID,
		Phase:       phase,
		Answer:      question.ExpectedAnswer,
		PointsSpent: pointsSpent,
	}
	if _, err := tx.Exec(`INSERT INTO phase_answers (id, team_id, question_id, phase, answer, points_spent)
		VALUES (?, ?, ?, ?, ?, ?)`,
		pa.ID, pa.TeamID, pa.QuestionID, pa.Phase, pa.Answer, pa.PointsSpent); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &pa, nil
}

func (s *Store) ListPhaseAnswers() ([]PhaseAnswer, error) {
	rows, err := s.db.Query(`SELECT id, team_id, question_id, phase, answer, points_spent
		FROM phase_answers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []PhaseAnswer
	for rows.Next() {
		var a PhaseAnswer
		if err := rows.Scan(&a.ID, &a.TeamID, &a.QuestionID, &a.Phase, &a.Answer, &a.PointsSpent); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}

	return answers, rows.Err()
}

// ---- Submissions ----

func (s *Store) UpsertDiagnosis(teamID, caseID, text string) error {
	_, err := s.db.Exec(`INSERT INTO phase5_responses (id, team_id, case_id, response_text)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (team_id, case_id) DO UPDATE
		SET response_text = excluded.response_text, updated_at = CURRENT_TIMESTAMP`,
		newID(), teamID, caseID, text)
	return err
}

func (s *Store) ListDiagnoses() ([]Submission, error) {
	return s.listSubmissions(`SELECT id, team_id, response_text FROM phase5_responses ORDER BY updated_at ASC, id ASC`)
}

func (s *Store) UpsertComment(teamID, kind, text string) error {
	_, err := s.db.Exec(`INSERT INTO comments (id, team_id, kind, comment)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (team_id, kind) DO UPDATE
		SET comment = excluded.comment, updated_at = CURRENT_TIMESTAMP`,
		newID(), teamID, kind, text)
	return err
}

func (s *Store) ListComments() ([]Comment, error) {
	rows, err := s.db.Query(`SELECT id, team_id, kind, comment FROM comments ORDER BY updated_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TeamID, &c.Kind, &c.Text); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

func (s *Store) UpsertCarePlan(teamID, content string) error {
	_, err := s.db.Exec(`INSERT INTO prise_en_charge (id, team_id, content)
		VALUES (?, ?, ?)
		ON CONFLICT (team_id) DO UPDATE
		SET content = excluded.content, updated_at = CURRENT_TIMESTAMP`,
		newID(), teamID, content)
	return err
}

func (s *Store) ListCarePlans() ([]Submission, error) {
	return s.listSubmissions(`SELECT id, team_id, content FROM prise_en_charge ORDER BY updated_at ASC, id ASC`)
}

func (s *Store) listSubmissions(query string) ([]Submission, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.TeamID, &sub.Text); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// ---- Phase 6 ----

func (s *Store) CountPhase6Questions() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM phase6_questions`).Scan(&count)
	return count, err
}

func (s *Store) Phase6QuestionAt(index int) (*Phase6Question, error) {
	var q Phase6Question
	err := s.db.QueryRow(`SELECT id, question_text, correct_answer, order_index
		FROM phase6_questions ORDER BY order_index ASC, id ASC LIMIT 1 OFFSET ?`, index).
		Scan(&q.ID, &q.QuestionText, &q.CorrectAnswer, &q.OrderIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &q, nil
}

func (s *Store) GetPhase6Question(id string) (*Phase6Question, error) {
	var q Phase6Question
	err := s.db.QueryRow(`SELECT id, question_text, correct_answer, order_index FROM phase6_questions WHERE id = ?`, id).
		Scan(&q.ID, &q.QuestionText, &q.CorrectAnswer, &q.OrderIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("question not found")
	}
	if err != nil {
		return nil, err
	}

	return &q, nil
}

func (s *Store) InsertPhase6Question(q Phase6Question) error {
	if q.ID == "" {
		q.ID = newID()
	}
	_, err := s.db.Exec(`INSERT INTO phase6_questions (id, question_text, correct_answer, order_index)
		VALUES (?, ?, ?, ?)`,
		q.ID, q.QuestionText, q.CorrectAnswer, q.OrderIndex)
	return err
}

func (s *Store) HasPhase6Answer(teamID, questionID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM phase6_answers WHERE team_id = ? AND question_id = ?`,
		teamID, questionID).Scan(&count)
	return count > 0, err
}

func (s *Store) InsertPhase6Answer(teamID, questionID string, answer, correct bool) error {
	_, err := s.db.Exec(`INSERT INTO phase6_answers (id, team_id, question_id, answer, is_correct)
		VALUES (?, ?, ?, ?, ?)`,
		newID(), teamID, questionID, answer, correct)
	return err
}

// ResetPhase6 restores every team's lives and score and clears the previous
// round's answer records.
func (s *Store) ResetPhase6(lives int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE teams SET phase6_lives = ?, phase6_score = 0, phase6_eliminated = 0`, lives); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM phase6_answers`); err != nil {
		return err
	}

	return tx.Commit()
}

// DecrementPhase6Life takes one life and flips the eliminated flag when the
// count reaches zero. Returns the team's updated state.
func (s *Store) DecrementPhase6Life(teamID string) (*Team, error) {
	if _, err := s.db.Exec(`UPDATE teams SET phase6_lives = phase6_lives - 1 WHERE id = ? AND phase6_lives > 0`, teamID); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`UPDATE teams SET phase6_eliminated = 1 WHERE id = ? AND phase6_lives <= 0`, teamID); err != nil {
		return nil, err
	}

	return s.GetTeam(teamID)
}

func (s *Store) IncrementPhase6Score(teamID string) (*Team, error) {
	if _, err := s.db.Exec(`UPDATE teams SET phase6_score = phase6_score + 1 WHERE id = ?`, teamID); err != nil {
		return nil, err
	}

	return s.GetTeam(teamID)
}

// TeamsWithoutPhase6Answer lists teams that have no answer record for the
// given question, the set penalized when the countdown hits zero.
func (s *Store) TeamsWithoutPhase6Answer(questionID string) ([]Team, error) {
	rows, err := s.db.Query(`SELECT id, name, points, clue, phase6_lives, phase6_score, phase6_eliminated, created_at
		FROM teams WHERE id NOT IN (SELECT team_id FROM phase6_answers WHERE question_id = ?)
		ORDER BY created_at ASC, name ASC`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Points, &t.Clue,
			&t.Phase6Lives, &t.Phase6Score, &t.Phase6Eliminated, &t.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}

	return teams, rows.Err()
}

// ---- Buzz ----

// RandomBuzzQuestion returns nil without error when the bank is empty.
func (s *Store) RandomBuzzQuestion() (*BuzzQuestion, error) {
	var q BuzzQuestion
	err := s.db.QueryRow(`SELECT id, question, answer FROM buzz_questions ORDER BY RANDOM() LIMIT 1`).
		Scan(&q.ID, &q.Question, &q.Answer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &q, nil
}

// ---- Reset ----

// ResetGame clears every per-round table, drops pirate-copy clue rows while
// keeping the seed clues, restores each team's balance, and returns the
// session to the lobby. Idempotent.
func (s *Store) ResetGame(startingPoints int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM team_members`,
		`DELETE FROM clue_exchanges`,
		`DELETE FROM phase_answers`,
		`DELETE FROM comments`,
		`DELETE FROM prise_en_charge`,
		`DELETE FROM phase5_responses`,
		`DELETE FROM phase6_answers`,
		`DELETE FROM team_clues WHERE clue_cost <= 0 AND is_piratable = 0`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`UPDATE teams SET points = ?, clue = '', phase6_lives = 0, phase6_score = 0, phase6_eliminated = 0`,
		startingPoints); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE game_session
		SET status = 'lobby', current_phase = 0, is_buzz_phase = 0,
			current_case_id = NULL, phase6_current_question = 0,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`); err != nil {
		return err
	}

	return tx.Commit()
}
