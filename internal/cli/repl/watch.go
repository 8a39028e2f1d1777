package repl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// watch connects to the notification socket and blocks until the next
// evaluation notification arrives or the watch timeout elapses.
func (s *Session) watch(ctx context.Context) error {
	if s.tokenState.Token == "" {
		return fmt.Errorf("login first: user login username=... password=...")
	}

	endpoint, err := url.Parse(s.watchURL)
	if err != nil {
		return fmt.Errorf("invalid watch url: %w", err)
	}
	query := endpoint.Query()
	query.Set("token", s.tokenState.Token)
	endpoint.RawQuery = query.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, s.watchTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	s.printLine("waiting for evaluation result (up to %s)...", s.watchTimeout)

	deadline, ok := dialCtx.Deadline()
	if ok {
		_ = conn.SetReadDeadline(deadline)
	}
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("watch ended: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if s.prettyJSON {
			var raw interface{}
			if err := json.Unmarshal(payload, &raw); err == nil {
				formatted, _ := json.MarshalIndent(raw, "", "  ")
				s.printLine("%s", string(formatted))
				return nil
			}
		}
		s.printLine("%s", string(payload))
		return nil
	}
}

// WatchURL derives the websocket endpoint from an HTTP base URL.
func WatchURL(baseURL, watchPath string) (string, error) {
	endpoint, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch endpoint.Scheme {
	case "http":
		endpoint.Scheme = "ws"
	case "https":
		endpoint.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", endpoint.Scheme)
	}
	endpoint.Path = watchPath
	return endpoint.String(), nil
}
