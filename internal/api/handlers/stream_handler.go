package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/cvflow/internal/core/pipeline"
)

type StreamHandler struct {
	orch *pipeline.Orchestrator
}

func NewStreamHandler(orch *pipeline.Orchestrator) *StreamHandler {
	return &StreamHandler{orch: orch}
}

// StreamProcessing runs the batch and relays its progress events as SSE
// frames, one JSON object per event. The pipeline runs on a background
// context: a client disconnect stops the writes but never the processing,
// so the handler keeps draining events until the run finishes.
func (h *StreamHandler) StreamProcessing(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan pipeline.Event, 32)

	var g errgroup.Group
	g.Go(func() error {
		defer close(events)
		return h.orch.Run(context.Background(), batchID, events)
	})

	writable := true
	for ev := range events {
		if !writable {
			continue
		}
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("Erro ao serializar evento do lote %s: %v", batchID, err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			log.Printf("Cliente desconectado do stream do lote %s; processamento continua", batchID)
			writable = false
			continue
		}
		flusher.Flush()
	}

	if err := g.Wait(); err != nil {
		log.Printf("Lote %s terminou com erro: %v", batchID, err)
	}
}
