package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/markdave123-py/cvflow/internal/core"
	"github.com/markdave123-py/cvflow/internal/core/chat"
	"github.com/markdave123-py/cvflow/internal/models"
)

type ChatHandler struct {
	store core.Store
	conv  *chat.Conversation
}

func NewChatHandler(store core.Store, conv *chat.Conversation) *ChatHandler {
	return &ChatHandler{store: store, conv: conv}
}

type chatRequest struct {
	BatchID string `json:"batch_id"`
	Message string `json:"message"`
}

// Chat answers a follow-up question about a completed batch. Only completed
// batches with at least one analyzed text are eligible; everything else is
// rejected before any model call.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Requisição inválida.")
		return
	}
	req.BatchID = strings.TrimSpace(req.BatchID)
	req.Message = strings.TrimSpace(req.Message)
	if req.BatchID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "batch_id e message são obrigatórios.")
		return
	}

	batch, err := h.store.GetBatch(r.Context(), req.BatchID)
	if err != nil {
		log.Printf("Erro ao carregar lote %s: %v", req.BatchID, err)
		writeError(w, http.StatusInternalServerError, "Erro ao carregar o lote.")
		return
	}
	if batch == nil {
		writeError(w, http.StatusBadRequest, "Lote não encontrado.")
		return
	}
	if batch.Status != models.BatchStatusCompleted {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Lote ainda não processado (status: %s).", batch.Status))
		return
	}

	reply, quotaErr, err := h.conv.Reply(r.Context(), req.BatchID, req.Message)
	if errors.Is(err, chat.ErrNoContext) {
		writeError(w, http.StatusBadRequest, "Nenhum texto de CV disponível para conversar neste lote.")
		return
	}
	if err != nil {
		log.Printf("Erro no chat do lote %s: %v", req.BatchID, err)
		if quotaErr {
			t := true
			if uerr := h.store.UpdateBatchStatus(r.Context(), req.BatchID, batch.Status, &t); uerr != nil {
				log.Printf("Erro ao marcar cota do lote %s: %v", req.BatchID, uerr)
			}
			writeError(w, http.StatusTooManyRequests, "Erro de Cota da API. Tente novamente mais tarde.")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro ao processar a pergunta.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
