package rpc

import (
	"context"
	"net/rpc"
	"testing"
	"time"

	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/models"
	"github.com/wfunc/kruivka/persistence"
	"github.com/wfunc/kruivka/services"
)

func startTestServer(t *testing.T, store persistence.Database) *rpc.Client {
	t.Helper()
	srv, err := NewServer("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Register(NewGameService(services.NewPlayerService(store))); err != nil {
		t.Fatal(err)
	}
	go srv.Start()
	t.Cleanup(srv.Stop)

	client, err := rpc.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestGameService_GetPlayerStats(t *testing.T) {
	store := persistence.NewMemoryStore()
	rec := models.GameRecord{GameID: "g1", FinishedAt: time.Now(), Players: []models.PlayerResult{{UserID: "u1", Won: true}}}
	if err := store.SaveGameRecord(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	client := startTestServer(t, store)

	var reply GetPlayerReply
	if err := client.Call("GameService.GetPlayerStats", &GetPlayerArgs{UserID: "u1"}, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Summary.Stats.Wins != 1 || len(reply.Summary.Recent) != 1 {
		t.Errorf("Unexpected summary: %+v", reply.Summary)
	}
}

func TestGameService_GetRoom(t *testing.T) {
	store := persistence.NewMemoryStore()
	r := game.NewRoom("UKR-42", game.Player{UserID: "h", Name: "Host"}, game.ModeOpen)
	if err := store.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	client := startTestServer(t, store)

	var reply GetRoomReply
	if err := client.Call("GameService.GetRoom", &GetRoomArgs{RoomID: "UKR-42"}, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Room == nil || reply.Room.HostID != "h" {
		t.Errorf("Unexpected room: %+v", reply.Room)
	}

	if err := client.Call("GameService.GetRoom", &GetRoomArgs{RoomID: "missing"}, &reply); err == nil {
		t.Error("Expected an error for a missing room")
	}
}
