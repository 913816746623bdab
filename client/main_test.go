package main

import (
	"testing"

	"github.com/wfunc/kruivka/network"
	"github.com/wfunc/kruivka/state"
)

func TestParse(t *testing.T) {
	msgID, req, ok := parse("plan u1 u2 u3")
	if !ok || msgID != network.MsgTypePlayerAction {
		t.Fatalf("Expected a player action, got %d %v", msgID, ok)
	}
	a := req.(state.Action)
	if a.Type != "plan" || len(a.Targets) != 3 {
		t.Errorf("Unexpected action: %+v", a)
	}

	msgID, req, _ = parse("join ukr-12ab")
	if msgID != network.MsgTypeJoinRoom || req.(network.JoinRoomRequest).RoomID != "UKR-12AB" {
		t.Errorf("Unexpected join: %d %+v", msgID, req)
	}

	_, req, _ = parse("say hello there")
	if req.(state.Action).Message != "hello there" {
		t.Errorf("Unexpected speech: %+v", req)
	}

	if _, _, ok := parse("dance"); ok {
		t.Error("Unknown command should not parse")
	}
}
