// Package main provides a room client for testing against a running server.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

var (
	app    = kingpin.New("satsbox-roomcli", "satsbox room client for testing")
	server = app.Flag("server", "Server websocket URL").Default("ws://localhost:8080/ws").String()

	// host command
	hostCmd    = app.Command("host", "Create a room and stream its events")
	hostWallet = hostCmd.Arg("wallet", "Wallet connection string (lnbits://host?key=...)").Required().String()
	hostName   = hostCmd.Flag("name", "Display name").Default("host").String()

	// join command
	joinCmd  = app.Command("join", "Join a room and stream its events")
	joinCode = joinCmd.Arg("code", "Room code").Required().String()
	joinName = joinCmd.Flag("name", "Display name").Default("guest").String()

	// request command
	requestCmd    = app.Command("request", "Join a room and request an item")
	requestCode   = requestCmd.Arg("code", "Room code").Required().String()
	requestURL    = requestCmd.Arg("url", "Item URL").Required().String()
	requestAmount = requestCmd.Arg("amount", "Bid in sats").Required().Int64()
	requestName   = requestCmd.Flag("name", "Display name").Default("guest").String()
)

type envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	conn, _, err := websocket.DefaultDialer.Dial(*server, nil)
	if err != nil {
		fmt.Printf("Error: failed to connect to %s: %v\n", *server, err)
		os.Exit(1)
	}
	defer conn.Close()

	switch command {
	case hostCmd.FullCommand():
		send(conn, "create-room", map[string]any{
			"walletConnection": *hostWallet,
			"name":             *hostName,
		})
	case joinCmd.FullCommand():
		send(conn, "join-room", map[string]any{
			"roomCode": *joinCode,
			"name":     *joinName,
		})
	case requestCmd.FullCommand():
		send(conn, "join-room", map[string]any{
			"roomCode": *requestCode,
			"name":     *requestName,
		})
		send(conn, "make-request", map[string]any{
			"roomCode": *requestCode,
			"amount":   *requestAmount,
			"url":      *requestURL,
		})
	}

	stream(conn)
}

// send writes one enveloped message to the server.
func send(conn *websocket.Conn, msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	data, err := json.Marshal(envelope{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		fmt.Printf("Error: failed to send %s: %v\n", msgType, err)
		os.Exit(1)
	}
}

// stream prints every server message until interrupted or disconnected.
func stream(conn *websocket.Conn) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				fmt.Printf("Disconnected: %v\n", err)
				return
			}
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				fmt.Printf("<< unreadable frame: %v\n", err)
				continue
			}
			fmt.Printf("<< %s %s\n", env.Type, string(env.Payload))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-done:
	}
}
