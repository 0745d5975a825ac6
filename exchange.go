package main

// createExchange proposes a full inventory swap. Nothing is debited yet, the
// cost only falls due on accept, but the initiator must be able to afford it
// now so dead-on-arrival proposals never reach the other team.
func (h *Hub) createExchange(req *ExchangeCreateRequest) (any, error) {
	if req.FromTeamID == "" || req.ToTeamID == "" {
		return nil, errValidation("fromTeamId and toTeamId are required")
	}
	if req.FromTeamID == req.ToTeamID {
		return nil, errValidation("a team cannot exchange with itself")
	}

	from, err := h.store.GetTeam(req.FromTeamID)
	if err != nil {
		return nil, err
	}
	if _, err := h.store.GetTeam(req.ToTeamID); err != nil {
		return nil, err
	}

	settings, err := h.store.Settings()
	if err != nil {
		return nil, err
	}
	if from.Points < settings.ExchangeCost {
		return nil, errInsufficientPoints("not enough points to propose an exchange")
	}

	exchange, err := h.store.CreateExchange(req.FromTeamID, req.ToTeamID)
	if err != nil {
		return nil, err
	}

	logf(h.cfg, "EXCHANGE: Team %s proposed an exchange to team %s", req.FromTeamID, req.ToTeamID)

	h.broadcastExchanges()

	return exchange, nil
}

func (h *Hub) acceptExchange(req *ExchangeActRequest) (any, error) {
	if req.ExchangeID == "" {
		return nil, errValidation("exchangeId is required")
	}

	settings, err := h.store.Settings()
	if err != nil {
		return nil, err
	}
	if err := h.store.AcceptExchange(req.ExchangeID, settings.ExchangeCost); err != nil {
		return nil, err
	}

	logf(h.cfg, "EXCHANGE: Exchange %s accepted", req.ExchangeID)

	h.broadcastExchanges()
	h.broadcastTeams()

	return nil, nil
}

func (h *Hub) rejectExchange(req *ExchangeActRequest) (any, error) {
	if req.ExchangeID == "" {
		return nil, errValidation("exchangeId is required")
	}

	if err := h.store.RejectExchange(req.ExchangeID); err != nil {
		return nil, err
	}

	h.broadcastExchanges()

	return nil, nil
}

// hackClue copies one of the target's piratable clues to the hacker. The
// target keeps the original and is not told anything happened.
func (h *Hub) hackClue(req *HackRequest) (any, error) {
	if req.FromTeamID == "" || req.TargetTeamID == "" {
		return nil, errValidation("fromTeamId and targetTeamId are required")
	}
	if req.FromTeamID == req.TargetTeamID {
		return nil, errValidation("a team cannot hack itself")
	}

	if _, err := h.store.GetTeam(req.FromTeamID); err != nil {
		return nil, err
	}
	target, err := h.store.GetTeam(req.TargetTeamID)
	if err != nil {
		return nil, err
	}

	settings, err := h.store.Settings()
	if err != nil {
		return nil, err
	}

	clue, err := h.store.RandomPiratableClue(req.TargetTeamID)
	if err != nil {
		return nil, err
	}
	if clue == nil {
		// No piratable row: fall back to the target's visible clue.
		session, err := h.store.Session()
		if err != nil {
			return nil, err
		}
		if target.Clue == "" || session.CurrentCaseID == nil {
			return nil, errNotFound("no clue available to hack")
		}
		clue = &TeamClue{
			CaseID:   *session.CurrentCaseID,
			ClueText: target.Clue,
		}
	}

	if err := h.store.HackClue(req.FromTeamID, *clue, settings.HackCost); err != nil {
		return nil, err
	}

	logf(h.cfg, "EXCHANGE: Team %s hacked a clue from team %s", req.FromTeamID, req.TargetTeamID)

	h.broadcastTeams()

	return map[string]any{"clueText": clue.ClueText}, nil
}

func (h *Hub) buyAnswer(req *BuyAnswerRequest) (any, error) {
	if req.TeamID == "" || req.QuestionID == "" {
		return nil, errValidation("teamId and questionId are required")
	}
	if req.PointsSpent < 0 {
		return nil, errValidation("pointsSpent cannot be negative")
	}

	spend := req.PointsSpent
	if spend == 0 {
		settings, err := h.store.Settings()
		if err != nil {
			return nil, err
		}
		spend = settings.BuyAnswerCost
	}

	answer, err := h.store.BuyAnswer(req.TeamID, req.QuestionID, req.Phase, spend)
	if err != nil {
		return nil, err
	}

	logf(h.cfg, "ECONOMY: Team %s bought answer %s for %d points", req.TeamID, req.QuestionID, spend)

	answers, err := h.store.ListPhaseAnswers()
	if err != nil {
		return nil, err
	}
	h.broadcast(EventMessage{Type: EventAnswersUpdated, Data: answers})
	h.broadcastTeams()

	return answer, nil
}
