package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/channelchat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	externalID := flag.String("id", "cli:user", "external identity to log in as")
	name := flag.String("name", "", "display name")
	channel := flag.String("channel", "general", "channel to join")
	topic := flag.String("topic", "", "topic used if the channel has to be created")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	token, err := login(ctx, *server, *externalID, *name)
	if err != nil {
		return err
	}

	wsURL := strings.Replace(strings.TrimRight(*server, "/"), "http", "ws", 1) + "/ws?token=" + url.QueryEscape(token)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{Channel: *channel, Topic: *topic, Create: true}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s in #%s\n", *server, *externalID, *channel)
	fmt.Println("Type messages and press Enter to send. /join <name>, /leave <name>, /switch <name>. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *channel)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func login(ctx context.Context, server, externalID, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"external_id": externalID, "display_name": name})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/api/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: %s", resp.Status)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login: %w", err)
	}
	return out.Token, nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	frame, err := proto.EncodeInbound(typ, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch out.Type {
		case proto.OutboundTypeMessage:
			ts := time.UnixMilli(out.Timestamp).Format("15:04:05")
			fmt.Printf("%s [#%s] %s: %s\n", ts, out.Channel, out.SenderName, out.Text)
		case proto.OutboundTypeJoined:
			fmt.Printf("[#%s] %s joined (%d members) %s\n", out.Channel, out.User, count(out), out.Topic)
		case proto.OutboundTypeLeft:
			fmt.Printf("[#%s] %s left (%d members)\n", out.Channel, out.User, count(out))
		case proto.OutboundTypeClosed:
			fmt.Printf("[#%s] channel closed\n", out.Channel)
		case proto.OutboundTypeError:
			fmt.Printf("error %s: %s %s\n", out.Code, out.Channel, out.Detail)
		case proto.OutboundTypePong:
		default:
			fmt.Printf("frame type=%s\n", out.Type)
		}
	}
}

func count(out proto.Outbound) int {
	if out.MemberCount == nil {
		return 0
	}
	return *out.MemberCount
}

func writeLoop(ctx context.Context, conn *websocket.Conn, current string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			cmd, arg, _ := strings.Cut(text, " ")
			switch cmd {
			case "/join":
				err = send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{Channel: arg, Create: true})
				if err == nil {
					current = arg
				}
			case "/leave":
				err = send(ctx, conn, proto.InboundTypeLeave, proto.LeaveData{Channel: arg})
			case "/switch":
				current = arg
				fmt.Printf("posting to #%s\n", current)
			default:
				err = send(ctx, conn, proto.InboundTypeMsg, proto.MsgData{Channel: current, Text: text})
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
