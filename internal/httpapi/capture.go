package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// captureControl is a text-frame control message from the capture client.
// Binary frames carry PCM audio and need no envelope.
type captureControl struct {
	Type string `json:"type"` // "stop"
}

// handleCapture upgrades to WebSocket and runs one transcript capture
// session: binary frames are forwarded to the recognition stream, and every
// session update (interim, final, state, error) is pushed back as JSON.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.sttProvider == nil {
		writeError(w, http.StatusBadRequest, "no STT provider is configured; set providers.stt")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("capture: websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "capture ended")

	ctx := r.Context()
	sess := s.newCaptureSession()
	if err := sess.Start(ctx); err != nil {
		_ = wsjson.Write(ctx, conn, map[string]string{"type": "error", "error": err.Error()})
		conn.Close(websocket.StatusInternalError, "recognition stream failed")
		return
	}

	s.metrics.ActiveCaptures.Add(ctx, 1)
	defer s.metrics.ActiveCaptures.Add(context.WithoutCancel(ctx), -1)

	// Push session updates to the client until the session closes.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for u := range sess.Updates() {
			if err := wsjson.Write(ctx, conn, u); err != nil {
				return
			}
		}
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		switch typ {
		case websocket.MessageBinary:
			if err := sess.SendAudio(data); err != nil {
				slog.Warn("capture: send audio failed", "err", err)
			}
		case websocket.MessageText:
			var ctl captureControl
			if err := json.Unmarshal(data, &ctl); err != nil {
				continue
			}
			if ctl.Type == "stop" {
				sess.Stop()
				<-writerDone
				conn.Close(websocket.StatusNormalClosure, "capture stopped")
				return
			}
		}
	}

	sess.Stop()
	<-writerDone
}
