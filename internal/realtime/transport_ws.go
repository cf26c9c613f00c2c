package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"tableorder/internal/apperr"
	"tableorder/internal/domain"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 512 * 1024
)

// WSTransport dials the feed gateway over a websocket and subscribes to a
// set of topics. Each Connect performs the full handshake: dial, send a
// subscribe frame, wait for the SUBSCRIBED acknowledgement.
type WSTransport struct {
	url    string
	topics []string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSTransport(url string, topics ...string) *WSTransport {
	return &WSTransport{url: url, topics: topics}
}

func (t *WSTransport) Connect(ctx context.Context) (<-chan domain.ChangeEvent, <-chan error, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeNetworkFailure, err)
	}

	sub, err := json.Marshal(WireMessage{Type: MsgSubscribe, Topics: t.topics})
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		_ = conn.Close()
		return nil, nil, apperr.Wrap(apperr.CodeNetworkFailure, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, nil, apperr.Wrap(apperr.CodeNetworkTimeout, err)
	}
	var ack WireMessage
	if err := json.Unmarshal(raw, &ack); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if ack.Type != MsgStatus || ack.Status != AckSubscribed {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("subscribe not acknowledged: %s/%s", ack.Type, ack.Status)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	events := make(chan domain.ChangeEvent, 64)
	errs := make(chan error, 1)
	go t.readPump(conn, events, errs)
	go t.pingLoop(ctx, conn)
	return events, errs, nil
}

func (t *WSTransport) readPump(conn *websocket.Conn, events chan<- domain.ChangeEvent, errs chan<- error) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			errs <- apperr.Wrap(apperr.CodeNetworkFailure, err)
			return
		}
		var msg WireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue // tolerate junk frames
		}
		switch msg.Type {
		case MsgEvent:
			if msg.Event != nil {
				events <- *msg.Event
			}
		case MsgStatus:
			switch msg.Status {
			case AckChannelError:
				errs <- apperr.Wrap(apperr.CodeServiceUnavailable, fmt.Errorf("channel error"))
				return
			case AckTimedOut:
				errs <- apperr.New(apperr.CodeNetworkTimeout)
				return
			case AckClosed:
				errs <- fmt.Errorf("channel closed by server")
				return
			}
		}
	}
}

// pingLoop keeps the connection alive and tears it down when ctx ends,
// which unblocks readPump.
func (t *WSTransport) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close()
		t.conn = nil
		return err
	}
	return nil
}
