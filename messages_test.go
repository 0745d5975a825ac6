package main

import (
	"encoding/json"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name string
		data string
		code string
	}{
		{"valid", `{"teamId": "abc", "memberName": "Alice"}`, ""},
		{"empty payload", ``, ""},
		{"null-ish defaults", `{}`, ""},
		{"unknown field", `{"teamId": "abc", "teamID": "abc"}`, CodeValidation},
		{"trailing data", `{"teamId": "abc"} {"teamId": "def"}`, CodeValidation},
		{"wrong type", `{"teamId": 42}`, CodeValidation},
		{"not an object", `"abc"`, CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := decodeRequest[TeamJoinRequest](json.RawMessage(tt.data))
			if tt.code == "" {
				if err != nil {
					t.Fatalf("decodeRequest() error = %v", err)
				}
				if req == nil {
					t.Fatal("decodeRequest() returned nil without error")
				}
				return
			}
			if code := errorCode(t, err); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestDecodeRequestOptionalPointer(t *testing.T) {
	req, err := decodeRequest[AwardPointsRequest](json.RawMessage(`{"teamId": "abc"}`))
	if err != nil {
		t.Fatalf("decodeRequest() error = %v", err)
	}
	if req.Points != nil {
		t.Errorf("omitted points = %v, want nil", *req.Points)
	}

	req, err = decodeRequest[AwardPointsRequest](json.RawMessage(`{"teamId": "abc", "points": 0}`))
	if err != nil {
		t.Fatalf("decodeRequest() error = %v", err)
	}
	if req.Points == nil || *req.Points != 0 {
		t.Error("explicit zero points lost in decoding")
	}
}

func TestTeamView(t *testing.T) {
	team := Team{ID: "t1", Name: "Équipe 1", Points: 80, Clue: "Enfant de 2 ans"}
	clues := []TeamClue{{ID: "c1", CaseID: "case1", ClueText: "Vomissements répétés", ClueCost: 10, IsPiratable: true}}

	view := teamView(team, nil, clues)

	if view.Members == nil {
		t.Error("nil members should serialize as an empty list, not null")
	}
	if len(view.Clues) != 1 {
		t.Fatalf("clue count = %d, want 1", len(view.Clues))
	}

	// Cost and piratability stay server-side.
	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	clueList := decoded["clues"].([]any)
	clue := clueList[0].(map[string]any)
	if _, ok := clue["clue_cost"]; ok {
		t.Error("clue cost leaked into the client view")
	}
	if _, ok := clue["is_piratable"]; ok {
		t.Error("piratability leaked into the client view")
	}
}

func TestGameErrorRoundTrip(t *testing.T) {
	err := errInsufficientPoints("not enough points")

	gameErr := asGameError(err)
	if gameErr.Code != CodeInsufficientPoints {
		t.Errorf("code = %q, want %q", gameErr.Code, CodeInsufficientPoints)
	}

	// Internal faults are flattened to a generic error for the caller.
	generic := asGameError(json.Unmarshal([]byte("{"), &struct{}{}))
	if generic.Code != CodeInternal {
		t.Errorf("generic code = %q, want %q", generic.Code, CodeInternal)
	}
}
