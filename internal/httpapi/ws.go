package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/prepnexus/qbank/internal/ingest"
)

const wsReadTimeout = 30 * time.Second

// wsFrame is one message on the batch progress stream. Item frames arrive as
// each question finishes; a single summary frame closes the stream.
type wsFrame struct {
	Type    string             `json:"type"` // "item" or "summary"
	Item    *ingest.ItemResult `json:"item,omitempty"`
	Summary *BatchSummary      `json:"summary,omitempty"`
}

// handleBatchWS runs a batch import over a websocket. The client sends the
// batch payload as its first message and receives one frame per item as the
// runner progresses, so large workbooks show incremental progress instead of
// a single long-blocking response.
func (s *Server) handleBatchWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	readCtx, cancel := context.WithTimeout(r.Context(), wsReadTimeout)
	_, payload, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "expected a batch payload")
		return
	}

	drafts, violations, err := ingest.ParseBatch(payload)
	if err != nil {
		conn.Close(websocket.StatusInvalidFramePayloadData, "unparseable payload")
		return
	}
	if len(violations) > 0 {
		_ = wsjson.Write(r.Context(), conn, map[string]any{
			"type":       "violations",
			"violations": violations,
		})
		conn.Close(websocket.StatusInvalidFramePayloadData, "schema violations")
		return
	}

	ctx := r.Context()
	results := s.runner.RunWithProgress(ctx, drafts, func(res ingest.ItemResult) {
		if err := wsjson.Write(ctx, conn, wsFrame{Type: "item", Item: &res}); err != nil {
			slog.Warn("websocket progress write failed", "index", res.Index, "error", err)
		}
	})

	summary := summarize(results)
	if err := wsjson.Write(ctx, conn, wsFrame{Type: "summary", Summary: &summary}); err != nil {
		slog.Warn("websocket summary write failed", "error", err)
	}
	conn.Close(websocket.StatusNormalClosure, "batch complete")
}
