package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// stream upgrades the request and writes each value from values as a JSON
// frame until values closes, the client goes away, or ctx ends. render turns
// a value into the frame payload; returning ok=false stops the stream.
func stream[T any](ctx context.Context, w http.ResponseWriter, r *http.Request, logger *zap.Logger,
	values <-chan T, render func(context.Context, T) (any, bool)) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The client never sends data frames; reading surfaces its close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// The peer may already be gone.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case v, ok := <-values:
			if !ok {
				return
			}
			payload, ok := render(ctx, v)
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Debug("websocket deadline failed", zap.Error(err))
				return
			}
			if err := conn.WriteJSON(payload); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
