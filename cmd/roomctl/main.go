// roomctl creates a game room on a running server, optionally with a
// fixed target word, and waits until the room is ready to play.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	roomID    string
	player    string
	target    string
	timeout   time.Duration
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinPayload struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
	TargetWord string `json:"target_word,omitempty"`
}

type roomState struct {
	Ready      bool `json:"ready"`
	TotalWords int  `json:"total_words"`
}

type errorEvent struct {
	Msg string `json:"msg"`
}

func main() {
	root := &cobra.Command{
		Use:          "roomctl",
		Short:        "Create nearword rooms over the game wire protocol",
		SilenceUsage: true,
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a room and wait until it is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			return createRoom()
		},
	}
	create.Flags().StringVar(&serverURL, "server", "ws://localhost:8000/ws", "game server WebSocket URL")
	create.Flags().StringVar(&roomID, "room", "", "room id to create")
	create.Flags().StringVar(&player, "name", "roomctl", "player name to join as")
	create.Flags().StringVar(&target, "target", "", "fixed target word (empty for random)")
	create.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "how long to wait for readiness")
	_ = create.MarkFlagRequired("room")

	root.AddCommand(create)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRoom() error {
	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", serverURL, err)
	}
	defer conn.Close()

	data, err := json.Marshal(joinPayload{RoomID: roomID, PlayerName: player, TargetWord: target})
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(frame{Event: "join_room", Data: data}); err != nil {
		return fmt.Errorf("send join_room: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("waiting for room_state: %w", err)
		}
		switch f.Event {
		case "room_state":
			var state roomState
			if err := json.Unmarshal(f.Data, &state); err != nil {
				return fmt.Errorf("decode room_state: %w", err)
			}
			if state.Ready {
				fmt.Printf("room %s ready (%d ranked words)\n", roomID, state.TotalWords)
				return nil
			}
			fmt.Printf("room %s created, waiting for ranking...\n", roomID)
		case "room_loading":
			// Progress text is opaque; show it as-is.
			var loading errorEvent
			if err := json.Unmarshal(f.Data, &loading); err == nil && loading.Msg != "" {
				fmt.Println(loading.Msg)
			}
		case "guess_error":
			var ge errorEvent
			_ = json.Unmarshal(f.Data, &ge)
			return fmt.Errorf("server rejected room: %s", ge.Msg)
		}
	}
}
