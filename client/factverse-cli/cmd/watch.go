package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var watchRoom string

// wsMessage is the realtime envelope used by the server.
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch for newly generated facts in real time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return watchFacts(ctx, serverURL, watchRoom, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchRoom, "room", "", "join a room after connecting")
}

// wsURL turns the server base URL into the websocket endpoint.
func wsURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String(), nil
}

func watchFacts(ctx context.Context, base, room string, out io.Writer) error {
	endpoint, err := wsURL(base)
	if err != nil {
		return err
	}
	log.Printf("Connecting to %s", endpoint)

	c, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	go func() {
		<-ctx.Done()
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
	}()

	if room != "" {
		data, _ := json.Marshal(room)
		if err := c.WriteJSON(wsMessage{Event: "join-room", Data: data}); err != nil {
			return fmt.Errorf("join room: %w", err)
		}
	}

	fmt.Fprintln(out, "WebSocket connected. Waiting for new facts...")
	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		switch msg.Event {
		case "new-fact-available":
			var f fact
			if err := json.Unmarshal(msg.Data, &f); err != nil {
				log.Printf("Error decoding fact: %v. Raw message: %s", err, msg.Data)
				continue
			}
			printFact(out, f)
		case "joined-room":
			var joined string
			_ = json.Unmarshal(msg.Data, &joined)
			fmt.Fprintf(out, "joined room %s\n", joined)
		default:
			fmt.Fprintf(out, "%s: %s\n", msg.Event, msg.Data)
		}
	}
}
