package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/changeling/network"
)

const usage = `commands:
  host <name> [portrait]
  join <room> <name> [portrait]
  start | next | leave | restart
  burn <user_id>
  convert <user_id>`

// send writes one request envelope.
func send(c *websocket.Conn, name string, payload any) error {
	return c.WriteJSON(map[string]any{"name": name, "payload": payload})
}

// parse turns one input line into a request.
func parse(line string) (string, any, bool) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return "", nil, false
	}
	arg := func(n int, def string) string {
		if n < len(f) {
			return f[n]
		}
		return def
	}
	switch f[0] {
	case "host":
		return network.ReqHostGame, network.HostGamePayload{Name: arg(1, "player"), Portrait: arg(2, "")}, true
	case "join":
		if len(f) < 2 {
			return "", nil, false
		}
		return network.ReqJoinGame, network.JoinGamePayload{RoomID: f[1], Name: arg(2, "player"), Portrait: arg(3, "")}, true
	case "start":
		return network.ReqStartGame, nil, true
	case "next":
		return network.ReqNextTurn, nil, true
	case "leave":
		return network.ReqLeaveGame, nil, true
	case "restart":
		return network.ReqRestartGame, nil, true
	case "burn", "convert":
		if len(f) < 2 {
			return "", nil, false
		}
		name := network.ReqBurnPlayer
		if f[0] == "convert" {
			name = network.ReqConvert
		}
		return name, network.TargetPayload{UserID: f[1]}, true
	}
	return "", nil, false
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
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
			var msg struct {
				Name    string          `json:"name"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := c.ReadJSON(&msg); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- %s %s", msg.Name, string(msg.Payload))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	log.Println(usage)
	for {
		select {
		case <-done:
			return
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
		case line, ok := <-lines:
			if !ok {
				return
			}
			name, payload, valid := parse(line)
			if !valid {
				log.Println(usage)
				continue
			}
			if err := send(c, name, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> %s", name)
		}
	}
}
