package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	relayReceiveTimeout     = 10 * time.Second
	relayMaxConsecutiveIdle = 3
)

// handleAudioRelay proxies a client websocket to the live transcription
// endpoint: raw audio frames upstream, transcript events downstream. Each
// downstream event is tagged with the session id before forwarding.
func (s *Server) handleAudioRelay(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if _, err := uuid.Parse(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id must be a valid UUID")
		return
	}
	if s.deepgramLiveURL == "" || s.deepgramAPIKey == "" {
		writeError(w, http.StatusServiceUnavailable, "relay_unconfigured", "live transcription is not configured")
		return
	}

	client, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("audio relay accept failed", "error", err)
		return
	}
	defer client.Close(websocket.StatusInternalError, "relay closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	upstreamURL, err := liveURLWithParams(s.deepgramLiveURL)
	if err != nil {
		slog.Error("audio relay bad upstream url", "error", err)
		client.Close(websocket.StatusInternalError, "bad upstream url")
		return
	}
	header := http.Header{}
	header.Set("Authorization", "Token "+s.deepgramAPIKey)
	upstream, _, err := websocket.Dial(ctx, upstreamURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		slog.Error("audio relay upstream dial failed", "error", err)
		client.Close(websocket.StatusBadGateway, "transcription service unavailable")
		return
	}
	defer upstream.Close(websocket.StatusNormalClosure, "relay closed")

	done := make(chan struct{}, 2)
	go func() {
		defer func() { done <- struct{}{} }()
		s.pumpAudioUpstream(ctx, client, upstream)
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		s.pumpEventsDownstream(ctx, upstream, client, sessionID)
	}()

	// Either pump finishing tears down the relay.
	<-done
	cancel()
	<-done
	client.Close(websocket.StatusNormalClosure, "relay closed")
	slog.Info("audio relay closed", "session_id", sessionID)
}

func liveURLWithParams(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("punctuate", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// pumpAudioUpstream forwards client audio frames to the transcription
// service until the client disconnects.
func (s *Server) pumpAudioUpstream(ctx context.Context, client, upstream *websocket.Conn) {
	for {
		typ, data, err := client.Read(ctx)
		if err != nil {
			return
		}
		if err := upstream.Write(ctx, typ, data); err != nil {
			return
		}
	}
}

type relayFrame struct {
	data []byte
	err  error
}

// pumpEventsDownstream forwards transcript events to the client, tagging
// each with the session id. A quiet upstream is tolerated for a few
// receive windows before the relay gives up; canceling the read context
// would tear down the upstream connection, so idleness is tracked with a
// watchdog timer instead.
func (s *Server) pumpEventsDownstream(ctx context.Context, upstream, client *websocket.Conn, sessionID string) {
	frames := make(chan relayFrame)
	go func() {
		for {
			_, data, err := upstream.Read(ctx)
			select {
			case frames <- relayFrame{data: data, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	idle := 0
	timer := time.NewTimer(relayReceiveTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-frames:
			if f.err != nil {
				return
			}
			idle = 0
			if err := client.Write(ctx, websocket.MessageText, tagEvent(f.data, sessionID)); err != nil {
				return
			}
		case <-timer.C:
			idle++
			if idle >= relayMaxConsecutiveIdle {
				slog.Warn("audio relay upstream idle, closing", "session_id", sessionID)
				return
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(relayReceiveTimeout)
	}
}

// tagEvent injects the session id into a transcript event. Events that are
// not JSON objects are wrapped verbatim under a "raw" key.
func tagEvent(data []byte, sessionID string) []byte {
	var event map[string]any
	if err := json.Unmarshal(data, &event); err != nil || event == nil {
		event = map[string]any{"raw": string(data)}
	}
	event["session_id"] = sessionID
	out, err := json.Marshal(event)
	if err != nil {
		return data
	}
	return out
}
