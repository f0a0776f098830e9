package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/flemzord/brandai/internal/security"
)

// handleChatWS serves chat over a WebSocket. Each client frame is a chat
// request; the server answers with one frame per delta and a final done
// frame, then waits for the next request.
func (g *Gateway) handleChatWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The hijacked connection keeps the server's write deadline otherwise.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Debug("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(int64(g.config.MaxBodyBytes))

		ctx := r.Context()
		for {
			var body chatRequest
			if err := wsjson.Read(ctx, conn, &body); err != nil {
				if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
					websocket.CloseStatus(err) != websocket.StatusGoingAway {
					g.logger.Debug("websocket read ended", "error", err)
				}
				return
			}

			if err := g.limiter.Allow(security.KindChat, clientKey(r)); err != nil {
				g.audit.Log(security.AuditEvent{Type: security.EventRateLimit, RemoteAddr: clientKey(r), Detail: security.KindChat})
				if err := wsjson.Write(ctx, conn, streamEvent{Done: true, Error: err.Error()}); err != nil {
					return
				}
				continue
			}

			var writeErr error
			text, err := g.runChat(ctx, r, body, func(delta, full string) {
				if writeErr == nil {
					writeErr = wsjson.Write(ctx, conn, streamEvent{Delta: delta, Text: full})
				}
			})
			if writeErr != nil {
				return
			}
			final := streamEvent{Done: true, Text: text}
			if err != nil {
				final.Error = err.Error()
			}
			if err := wsjson.Write(ctx, conn, final); err != nil {
				if !errors.Is(err, ctx.Err()) {
					g.logger.Debug("websocket write failed", "error", err)
				}
				return
			}
		}
	}
}
