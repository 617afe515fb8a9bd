package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	wsURL     = flag.String("url", "ws://localhost:5000/ws", "chat websocket endpoint")
	userCount = flag.Int("users", 100, "concurrent users")
	msgCount  = flag.Int("messages", 20, "messages per user")
	rooms     = []string{"general", "development", "design", "random"}
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type stats struct {
	sent     atomic.Int64
	received atomic.Int64
	failed   atomic.Int64
}

func main() {
	flag.Parse()
	log.Printf("🔥 STARTING STRESS TEST: %d users, %d messages each against %s", *userCount, *msgCount, *wsURL)

	var (
		wg    sync.WaitGroup
		st    stats
		start = time.Now()
	)
	for i := 0; i < *userCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := runUser(id, &st); err != nil {
				st.failed.Add(1)
				log.Printf("user %d: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	elapsed := time.Since(start)
	log.Printf("✅ LOAD TEST COMPLETE in %s: sent=%d received=%d failed_users=%d (%.0f msg/s delivered)",
		elapsed.Round(time.Millisecond), st.sent.Load(), st.received.Load(), st.failed.Load(),
		float64(st.received.Load())/elapsed.Seconds())
}

func runUser(id int, st *stats) error {
	conn, _, err := websocket.DefaultDialer.Dial(*wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			for _, line := range bytes.Split(raw, []byte{'\n'}) {
				var f frame
				if json.Unmarshal(line, &f) == nil && f.Event == "new_message" {
					st.received.Add(1)
				}
			}
		}
	}()

	room := rooms[id%len(rooms)]
	if err := send(conn, "user_join", map[string]string{"name": fmt.Sprintf("load-%d", id)}); err != nil {
		return err
	}
	if err := send(conn, "join_room", room); err != nil {
		return err
	}

	for i := 0; i < *msgCount; i++ {
		msg := map[string]string{"message": fmt.Sprintf("msg %d from %d", i, id), "room": room}
		if err := send(conn, "send_message", msg); err != nil {
			return err
		}
		st.sent.Add(1)
		// Stay under the default per-peer rate limit.
		time.Sleep(150 * time.Millisecond)
	}

	// Give the fan-out a moment before hanging up.
	time.Sleep(time.Second)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

func send(conn *websocket.Conn, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(frame{Event: event, Data: payload})
}
