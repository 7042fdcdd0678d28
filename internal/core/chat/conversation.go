package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/markdave123-py/cvflow/internal/core"
	"github.com/markdave123-py/cvflow/internal/models"
)

// NotProcessedPrefix marks a recoverable initial-instruction outcome. The
// orchestrator downgrades replies carrying this prefix to a warning.
const NotProcessedPrefix = "Instrução inicial não processada"

// EmptyReplyNotice is returned when the model produces an empty answer. It
// is shown to the user but never stored as a conversation turn.
const EmptyReplyNotice = "O modelo não retornou uma resposta para esta pergunta. Tente reformular."

// ErrNoContext means the batch has no successfully analyzed document texts
// to ground a conversation on.
var ErrNoContext = errors.New("nenhum texto de CV disponível para este lote")

// Conversation answers questions about a batch's analyzed documents. Every
// prompt carries the eligible document texts, bounded per document, plus a
// bounded window of previous turns.
type Conversation struct {
	store            core.Store
	gateway          core.Gateway
	contextCharLimit int
	historyLimit     int
}

func NewConversation(store core.Store, gateway core.Gateway, contextCharLimit, historyLimit int) *Conversation {
	return &Conversation{
		store:            store,
		gateway:          gateway,
		contextCharLimit: contextCharLimit,
		historyLimit:     historyLimit,
	}
}

const promptTemplate = `Você é um assistente de RH que responde perguntas sobre os currículos analisados abaixo.
Baseie-se apenas no conteúdo fornecido. Se a informação não estiver nos currículos, diga isso claramente.

%s%s%s: %s

Resposta:`

// InitialInstruction answers the instruction submitted at upload time,
// using the just-produced in-memory results as context. Recoverable
// failures come back as a NotProcessedPrefix reply instead of an error so
// the batch can still complete.
func (c *Conversation) InitialInstruction(ctx context.Context, batchID, instruction string, results []*models.Result) (string, bool) {
	texts := eligibleTexts(results)
	if len(texts) == 0 {
		return NotProcessedPrefix + " (nenhum texto de CV disponível).", false
	}

	prompt := fmt.Sprintf(promptTemplate,
		c.renderContext(texts), "", "Instrução do usuário sobre os currículos", instruction)

	reply, quotaErr, err := c.gateway.Chat(ctx, prompt)
	if quotaErr {
		return "Erro de Cota da API ao processar a instrução inicial.", true
	}
	if err != nil {
		log.Printf("Erro na instrução inicial do lote %s: %v", batchID, err)
		return fmt.Sprintf("%s (%v).", NotProcessedPrefix, err), false
	}
	if strings.TrimSpace(reply) == "" {
		return NotProcessedPrefix + " (resposta vazia do modelo).", false
	}
	return reply, false
}

// Reply answers a follow-up question over the batch's persisted texts and
// records the turn. An empty model answer yields EmptyReplyNotice and no
// stored turn. quotaErr is reported alongside the error so the caller can
// mark the batch's sticky quota flag.
func (c *Conversation) Reply(ctx context.Context, batchID, message string) (string, bool, error) {
	texts, err := c.store.GetBatchResultTexts(ctx, batchID)
	if err != nil {
		return "", false, fmt.Errorf("load context for batch %s: %w", batchID, err)
	}
	if len(texts) == 0 {
		return "", false, ErrNoContext
	}

	history, err := c.store.GetChatHistory(ctx, batchID, c.historyLimit)
	if err != nil {
		return "", false, fmt.Errorf("load chat history for batch %s: %w", batchID, err)
	}

	prompt := fmt.Sprintf(promptTemplate,
		c.renderContext(texts), renderHistory(history), "Pergunta do usuário", message)

	reply, quotaErr, err := c.gateway.Chat(ctx, prompt)
	if err != nil {
		return "", quotaErr, fmt.Errorf("chat for batch %s: %w", batchID, err)
	}
	if strings.TrimSpace(reply) == "" {
		return EmptyReplyNotice, false, nil
	}

	turn := &models.ChatTurn{BatchID: batchID, UserMessage: message, ModelReply: reply}
	if err := c.store.CreateChatTurn(ctx, turn); err != nil {
		return "", false, fmt.Errorf("save chat turn for batch %s: %w", batchID, err)
	}
	return reply, false, nil
}

func eligibleTexts(results []*models.Result) []models.ResultText {
	var texts []models.ResultText
	for _, r := range results {
		if !strings.HasPrefix(r.StatusFinal, models.StatusSuccessPrefix) {
			continue
		}
		if r.FullText == nil || strings.TrimSpace(*r.FullText) == "" {
			continue
		}
		texts = append(texts, models.ResultText{OriginalName: r.Filename, FullText: *r.FullText})
	}
	return texts
}

func (c *Conversation) renderContext(texts []models.ResultText) string {
	var b strings.Builder
	for i, t := range texts {
		body := t.FullText
		if runes := []rune(body); len(runes) > c.contextCharLimit {
			body = string(runes[:c.contextCharLimit]) + "\n... (texto truncado)"
		}
		fmt.Fprintf(&b, "--- CURRÍCULO %d (%s) ---\n%s\n\n", i+1, t.OriginalName, body)
	}
	return b.String()
}

// renderHistory turns a newest-first turn window into an oldest-first
// transcript block, or an empty string when there is no history.
func renderHistory(turns []models.ChatTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Histórico recente da conversa:\n")
	for i := len(turns) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "Usuário: %s\nAssistente: %s\n", turns[i].UserMessage, turns[i].ModelReply)
	}
	b.WriteString("\n")
	return b.String()
}
