package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"

	"github.com/wfunc/kruivka/network"
	"github.com/wfunc/kruivka/state"
)

const usage = `commands:
  create [open|closed]   join CODE   leave
  ready   bots   start   say TEXT
  plan A B C   target ID   act ID
  nominate ID   pass   vote ID`

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// parse turns one input line into a request.
func parse(line string) (uint16, any, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, false
	}
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	action := func(a state.Action) (uint16, any, bool) {
		return network.MsgTypePlayerAction, a, true
	}

	switch fields[0] {
	case "create":
		return network.MsgTypeCreateRoom, network.CreateRoomRequest{Mode: arg(1)}, true
	case "join":
		return network.MsgTypeJoinRoom, network.JoinRoomRequest{RoomID: strings.ToUpper(arg(1))}, true
	case "leave":
		return network.MsgTypeLeaveRoom, struct{}{}, true
	case "ready":
		return action(state.Action{Type: "ready", Ready: true})
	case "bots":
		return action(state.Action{Type: "add_bots"})
	case "start":
		return action(state.Action{Type: "start"})
	case "say":
		return action(state.Action{Type: "speak", Message: strings.TrimSpace(strings.TrimPrefix(line, "say"))})
	case "plan":
		return action(state.Action{Type: "plan", Targets: fields[1:]})
	case "target":
		return action(state.Action{Type: "target", Target: arg(1)})
	case "act":
		return action(state.Action{Type: "action", Target: arg(1)})
	case "nominate":
		return action(state.Action{Type: "nominate", Target: arg(1)})
	case "pass":
		return action(state.Action{Type: "pass"})
	case "vote":
		return action(state.Action{Type: "vote", Target: arg(1)})
	}
	return 0, nil, false
}

func main() {
	addr := flag.StringP("addr", "a", "localhost:8080", "server address")
	userID := flag.StringP("user", "u", "", "participant id, kept across reconnects")
	name := flag.StringP("name", "n", "", "display name")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.DecodePacket(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			if packet.MsgID == network.MsgTypeHeartbeat {
				continue
			}
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}()

	if err := send(c, network.MsgTypeLogin, network.LoginRequest{UserID: *userID, Name: *name}); err != nil {
		log.Println("Write error:", err)
		return
	}
	log.Println("Client started.\n" + usage)

	lines := make(chan string)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			text, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimSpace(text)
		}
	}()

	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				log.Println("Write error:", err)
				return
			}
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text := <-lines:
			msgID, req, ok := parse(text)
			if !ok {
				log.Println(usage)
				continue
			}
			if err := send(c, msgID, req); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", text)
		}
	}
}
