package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Client struct {
	conn    *websocket.Conn
	send    chan any
	isAdmin bool
}

type clientRequest struct {
	client *Client
	env    Envelope
}

// Hub owns every mutable aggregate of the running game: the connected client
// set, the buzz round, and the phase-6 countdown. All commands and timer
// ticks are consumed by the single run loop, which linearizes every mutation
// without per-aggregate locks.
type Hub struct {
	cfg   *Config
	store *Store

	clients  map[*Client]bool
	register chan *Client
	unreg    chan *Client
	requests chan clientRequest
	ticks    chan phase6Tick

	buzzQuestion *BuzzQuestion
	buzzQueue    []string

	phase6    *phase6Round
	phase6Gen int
}

func newHub(cfg *Config, store *Store) *Hub {
	return &Hub{
		cfg:      cfg,
		store:    store,
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		requests: make(chan clientRequest),
		ticks:    make(chan phase6Tick),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.syncClient(c)

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case req := <-h.requests:
			h.handleRequest(req)

		case tick := <-h.ticks:
			h.handlePhase6Tick(tick)

		case <-ctx.Done():
			h.stopPhase6Timer()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		}
	}
}

// handleRequest runs one command and answers the caller. Unexpected faults
// are caught here so a bad command never takes the loop down.
func (h *Hub) handleRequest(req clientRequest) {
	var (
		data any
		err  error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				logf(h.cfg, "GAME: Panic in %q: %v", req.env.Type, r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		data, err = h.dispatch(req.client, req.env)
	}()

	result := ResultMessage{
		Type: EventResult,
		ID:   req.env.ID,
		OK:   err == nil,
		Data: data,
	}
	if err != nil {
		result.Error = asGameError(err)
		logf(h.cfg, "GAME: Command %q failed: %v", req.env.Type, err)
	}

	h.sendTo(req.client, result)
}

func (h *Hub) dispatch(c *Client, env Envelope) (any, error) {
	switch env.Type {
	case CmdAdminJoin:
		c.isAdmin = true
		return nil, nil

	case CmdStartGame:
		req, err := decodeRequest[StartGameRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.startGame(req)

	case CmdNextPhase:
		return h.nextPhase()

	case CmdResetGame:
		return h.resetGame()

	case CmdAwardPoints:
		req, err := decodeRequest[AwardPointsRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.awardPoints(req)

	case CmdTeamJoin:
		req, err := decodeRequest[TeamJoinRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.joinTeam(req)

	case CmdExchangeCreate:
		req, err := decodeRequest[ExchangeCreateRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.createExchange(req)

	case CmdExchangeAccept:
		req, err := decodeRequest[ExchangeActRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.acceptExchange(req)

	case CmdExchangeReject:
		req, err := decodeRequest[ExchangeActRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.rejectExchange(req)

	case CmdClueHack:
		req, err := decodeRequest[HackRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.hackClue(req)

	case CmdAnswerBuy:
		req, err := decodeRequest[BuyAnswerRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.buyAnswer(req)

	case CmdDiagnosisSubmit:
		req, err := decodeRequest[DiagnosisRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.submitDiagnosis(req)

	case CmdCommentSubmit:
		req, err := decodeRequest[CommentRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.submitComment(req)

	case CmdCarePlanSubmit:
		req, err := decodeRequest[CarePlanRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.submitCarePlan(req)

	case CmdBuzzPress:
		req, err := decodeRequest[BuzzPressRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.buzzPress(req)

	case CmdBuzzNewQuestion:
		req, err := decodeRequest[BuzzQuestionRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.buzzNewQuestion(req)

	case CmdBuzzNextInQueue:
		return h.buzzNextInQueue()

	case CmdBuzzResetQueue:
		return h.buzzResetQueue()

	case CmdBuzzRequestSync:
		return h.buzzSyncData(), nil

	case CmdPhase6Start:
		return h.phase6Start()

	case CmdPhase6Answer:
		req, err := decodeRequest[Phase6AnswerRequest](env.Data)
		if err != nil {
			return nil, err
		}
		return h.phase6Answer(req)

	case CmdPhase6NextQ:
		return h.phase6NextQuestion()

	case CmdPhase6End:
		return h.phase6End()

	default:
		return nil, errValidation("unknown command: " + env.Type)
	}
}

// syncClient pushes the full current state to a newly connected client. The
// protocol is push-based, so a late joiner sees nothing until this snapshot.
func (h *Hub) syncClient(c *Client) {
	if session, err := h.store.Session(); err == nil {
		h.sendTo(c, EventMessage{Type: EventSessionUpdated, Data: session})
	}
	if teams, err := h.teamViews(); err == nil {
		h.sendTo(c, EventMessage{Type: EventTeamsUpdated, Data: teams})
	}
	if exchanges, err := h.store.ListExchanges(); err == nil {
		h.sendTo(c, EventMessage{Type: EventExchangesUpdated, Data: exchanges})
	}
	if answers, err := h.store.ListPhaseAnswers(); err == nil {
		h.sendTo(c, EventMessage{Type: EventAnswersUpdated, Data: answers})
	}
	if comments, err := h.store.ListComments(); err == nil {
		h.sendTo(c, EventMessage{Type: EventCommentsUpdated, Data: comments})
	}
	if diagnoses, err := h.store.ListDiagnoses(); err == nil {
		h.sendTo(c, EventMessage{Type: EventDiagnosisUpdated, Data: diagnoses})
	}
	if plans, err := h.store.ListCarePlans(); err == nil {
		h.sendTo(c, EventMessage{Type: EventCarePlanUpdated, Data: plans})
	}

	h.sendTo(c, EventMessage{Type: EventBuzzNewQuestion, Data: h.buzzQuestion})
	h.sendTo(c, EventMessage{Type: EventBuzzQueue, Data: h.buzzQueueSnapshot()})

	h.syncPhase6(c)
}

func (h *Hub) teamViews() ([]TeamView, error) {
	teams, err := h.store.ListTeams()
	if err != nil {
		return nil, err
	}

	views := make([]TeamView, 0, len(teams))
	for _, t := range teams {
		members, err := h.store.teamMembers(t.ID)
		if err != nil {
			return nil, err
		}
		clues, err := h.store.TeamClues(t.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, teamView(t, members, clues))
	}

	return views, nil
}

// sendTo queues a message for one client, evicting it if the buffer is
// full. Evicted clients have a closed send channel, so anything no longer
// in the client map must not be written to.
func (h *Hub) sendTo(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

func (h *Hub) broadcastAdmins(msg any) {
	for c := range h.clients {
		if c.isAdmin {
			h.sendTo(c, msg)
		}
	}
}

// broadcastTeams re-emits the canonical roster, the event most handlers end
// with.
func (h *Hub) broadcastTeams() {
	teams, err := h.teamViews()
	if err != nil {
		logf(h.cfg, "GAME: Failed to load team views: %v", err)
		return
	}
	h.broadcast(EventMessage{Type: EventTeamsUpdated, Data: teams})
}

func (h *Hub) broadcastSession() {
	session, err := h.store.Session()
	if err != nil {
		logf(h.cfg, "GAME: Failed to load session: %v", err)
		return
	}
	h.broadcast(EventMessage{Type: EventSessionUpdated, Data: session})
}

func (h *Hub) broadcastExchanges() {
	exchanges, err := h.store.ListExchanges()
	if err != nil {
		logf(h.cfg, "GAME: Failed to load exchanges: %v", err)
		return
	}
	h.broadcast(EventMessage{Type: EventExchangesUpdated, Data: exchanges})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Websocket upgrade failed for %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		h.register <- client

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Type == "" {
			continue
		}

		h.requests <- clientRequest{client: c, env: env}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
