package main

// The buzz round lives entirely in hub memory. A restart drops the active
// question and queue, which is acceptable since rounds last a minute or two.

func (h *Hub) setBuzzQuestion(q *BuzzQuestion) {
	h.buzzQuestion = q
	h.buzzQueue = nil

	h.broadcast(EventMessage{Type: EventBuzzNewQuestion, Data: q})
	h.broadcast(EventMessage{Type: EventBuzzQueue, Data: h.buzzQueueSnapshot()})
}

// buzzPress appends the team to the queue in arrival order. Pressing twice
// is a soft failure so the client can disable the buzzer without treating
// it as an error worth showing.
func (h *Hub) buzzPress(req *BuzzPressRequest) (any, error) {
	if req.TeamID == "" {
		return nil, errValidation("teamId is required")
	}

	if h.buzzQuestion == nil {
		return nil, errInvalidState("no active buzz question")
	}

	if _, err := h.store.GetTeam(req.TeamID); err != nil {
		return nil, err
	}

	for _, id := range h.buzzQueue {
		if id == req.TeamID {
			return nil, errDuplicate("already buzzed")
		}
	}

	h.buzzQueue = append(h.buzzQueue, req.TeamID)

	logf(h.cfg, "BUZZ: Team %s buzzed in at position %d", req.TeamID, len(h.buzzQueue))

	h.broadcast(EventMessage{Type: EventBuzzQueue, Data: h.buzzQueueSnapshot()})

	return map[string]any{"position": len(h.buzzQueue)}, nil
}

// buzzNewQuestion replaces the active question with an admin-supplied one
// and restarts the race with an empty queue.
func (h *Hub) buzzNewQuestion(req *BuzzQuestionRequest) (any, error) {
	if req.Question == "" {
		return nil, errValidation("question is required")
	}

	question := &BuzzQuestion{
		ID:       newID(),
		Question: req.Question,
		Answer:   req.Answer,
	}
	h.setBuzzQuestion(question)

	logf(h.cfg, "BUZZ: New question %q", question.Question)

	return question, nil
}

// buzzNextInQueue pops the team currently on the mic.
func (h *Hub) buzzNextInQueue() (any, error) {
	if len(h.buzzQueue) == 0 {
		return nil, errInvalidState("buzz queue is empty")
	}

	next := h.buzzQueue[0]
	h.buzzQueue = h.buzzQueue[1:]

	h.broadcast(EventMessage{Type: EventBuzzQueue, Data: h.buzzQueueSnapshot()})

	return map[string]any{"teamId": next}, nil
}

func (h *Hub) buzzResetQueue() (any, error) {
	h.buzzQueue = nil

	h.broadcast(EventMessage{Type: EventBuzzQueue, Data: h.buzzQueueSnapshot()})

	return nil, nil
}

// buzzSyncData snapshots the current round for a client that joined after
// the question was pushed.
func (h *Hub) buzzSyncData() BuzzSyncData {
	return BuzzSyncData{
		Question: h.buzzQuestion,
		Queue:    h.buzzQueueSnapshot(),
	}
}

func (h *Hub) buzzQueueSnapshot() []string {
	queue := make([]string, len(h.buzzQueue))
	copy(queue, h.buzzQueue)

	return queue
}
