package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/cvflow/internal/models"
)

type stubStore struct {
	texts   []models.ResultText
	history []models.ChatTurn
	turns   []*models.ChatTurn

	textsErr error
}

func (s *stubStore) CreateBatch(context.Context, *models.Batch) error        { return nil }
func (s *stubStore) GetBatch(context.Context, string) (*models.Batch, error) { return nil, nil }
func (s *stubStore) BeginProcessing(context.Context, string) (bool, error)   { return false, nil }
func (s *stubStore) UpdateBatchStatus(context.Context, string, string, *bool) error {
	return nil
}
func (s *stubStore) CreateFile(context.Context, *models.FileRecord) (int64, error) { return 0, nil }
func (s *stubStore) GetFileByID(context.Context, int64) (*models.FileRecord, error) {
	return nil, nil
}
func (s *stubStore) GetBatchFiles(context.Context, string, bool) ([]models.FileRecord, error) {
	return nil, nil
}
func (s *stubStore) CreateResults(context.Context, []*models.Result) error { return nil }

func (s *stubStore) GetBatchResultTexts(context.Context, string) ([]models.ResultText, error) {
	return s.texts, s.textsErr
}

func (s *stubStore) CreateChatTurn(_ context.Context, turn *models.ChatTurn) error {
	s.turns = append(s.turns, turn)
	return nil
}

func (s *stubStore) GetChatHistory(context.Context, string, int) ([]models.ChatTurn, error) {
	return s.history, nil
}

type stubGateway struct {
	lastPrompt string
	calls      int

	reply    string
	quotaErr bool
	err      error
}

func (g *stubGateway) ExtractData(context.Context, string) (map[string]any, string, bool) {
	return nil, "", false
}
func (g *stubGateway) GenerateReport(context.Context, map[string]any, string, string, string) (bool, string, bool) {
	return false, "", false
}
func (g *stubGateway) SummarizeWeb(context.Context, string) (string, *string, bool) {
	return "", nil, false
}

func (g *stubGateway) Chat(_ context.Context, prompt string) (string, bool, error) {
	g.calls++
	g.lastPrompt = prompt
	return g.reply, g.quotaErr, g.err
}

func strPtr(s string) *string { return &s }

func successResult(name, text string) *models.Result {
	return &models.Result{Filename: name, StatusFinal: models.StatusSuccess, FullText: strPtr(text)}
}

func TestInitialInstructionLabelsDocuments(t *testing.T) {
	gw := &stubGateway{reply: "três candidatos fortes"}
	conv := NewConversation(&stubStore{}, gw, 15000, 10)

	results := []*models.Result{
		successResult("ana.pdf", "Ana, engenheira de dados"),
		successResult("bia.docx", "Bia, desenvolvedora Go"),
	}
	reply, quota := conv.InitialInstruction(context.Background(), "b1", "Compare os candidatos", results)

	assert.False(t, quota)
	assert.Equal(t, "três candidatos fortes", reply)
	assert.Contains(t, gw.lastPrompt, "--- CURRÍCULO 1 (ana.pdf) ---")
	assert.Contains(t, gw.lastPrompt, "--- CURRÍCULO 2 (bia.docx) ---")
	assert.Contains(t, gw.lastPrompt, "Compare os candidatos")
}

func TestInitialInstructionNoEligibleTexts(t *testing.T) {
	gw := &stubGateway{}
	conv := NewConversation(&stubStore{}, gw, 15000, 10)

	results := []*models.Result{
		{Filename: "quebrado.pdf", StatusFinal: models.StatusError, FullText: strPtr("texto")},
		{Filename: "vazio.pdf", StatusFinal: models.StatusSuccessNoText, FullText: strPtr("   ")},
	}
	reply, quota := conv.InitialInstruction(context.Background(), "b1", "Resuma", results)

	assert.False(t, quota)
	assert.True(t, strings.HasPrefix(reply, NotProcessedPrefix))
	assert.Equal(t, 0, gw.calls)
}

func TestInitialInstructionQuota(t *testing.T) {
	gw := &stubGateway{quotaErr: true, err: errors.New("429")}
	conv := NewConversation(&stubStore{}, gw, 15000, 10)

	reply, quota := conv.InitialInstruction(context.Background(), "b1", "Resuma",
		[]*models.Result{successResult("cv.pdf", "texto")})

	assert.True(t, quota)
	assert.Contains(t, reply, "Cota")
}

func TestInitialInstructionEmptyReply(t *testing.T) {
	gw := &stubGateway{reply: "   "}
	conv := NewConversation(&stubStore{}, gw, 15000, 10)

	reply, quota := conv.InitialInstruction(context.Background(), "b1", "Resuma",
		[]*models.Result{successResult("cv.pdf", "texto")})

	assert.False(t, quota)
	assert.True(t, strings.HasPrefix(reply, NotProcessedPrefix))
}

func TestInitialInstructionTruncatesLongDocuments(t *testing.T) {
	gw := &stubGateway{reply: "ok"}
	conv := NewConversation(&stubStore{}, gw, 50, 10)

	long := strings.Repeat("currículo extenso ", 50)
	_, _ = conv.InitialInstruction(context.Background(), "b1", "Resuma",
		[]*models.Result{successResult("cv.pdf", long)})

	assert.Contains(t, gw.lastPrompt, "... (texto truncado)")
	assert.NotContains(t, gw.lastPrompt, long)
}

func TestReplyNoContext(t *testing.T) {
	gw := &stubGateway{}
	conv := NewConversation(&stubStore{}, gw, 15000, 10)

	_, _, err := conv.Reply(context.Background(), "b1", "Quem tem mais experiência?")
	assert.ErrorIs(t, err, ErrNoContext)
	assert.Equal(t, 0, gw.calls)
}

func TestReplyRendersHistoryOldestFirst(t *testing.T) {
	store := &stubStore{
		texts: []models.ResultText{{OriginalName: "cv.pdf", FullText: "texto"}},
		// Newest first, as the store returns it.
		history: []models.ChatTurn{
			{UserMessage: "segunda pergunta", ModelReply: "segunda resposta"},
			{UserMessage: "primeira pergunta", ModelReply: "primeira resposta"},
		},
	}
	gw := &stubGateway{reply: "nova resposta"}
	conv := NewConversation(store, gw, 15000, 10)

	reply, quota, err := conv.Reply(context.Background(), "b1", "terceira pergunta")
	require.NoError(t, err)
	assert.False(t, quota)
	assert.Equal(t, "nova resposta", reply)

	first := strings.Index(gw.lastPrompt, "primeira pergunta")
	second := strings.Index(gw.lastPrompt, "segunda pergunta")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second, "history must read oldest to newest")

	require.Len(t, store.turns, 1)
	assert.Equal(t, "terceira pergunta", store.turns[0].UserMessage)
	assert.Equal(t, "nova resposta", store.turns[0].ModelReply)
}

func TestReplyEmptyModelAnswer(t *testing.T) {
	store := &stubStore{texts: []models.ResultText{{OriginalName: "cv.pdf", FullText: "texto"}}}
	gw := &stubGateway{reply: "  "}
	conv := NewConversation(store, gw, 15000, 10)

	reply, quota, err := conv.Reply(context.Background(), "b1", "pergunta")
	require.NoError(t, err)
	assert.False(t, quota)
	assert.Equal(t, EmptyReplyNotice, reply)
	assert.Empty(t, store.turns, "empty answers are not recorded")
}

func TestReplyPropagatesQuota(t *testing.T) {
	store := &stubStore{texts: []models.ResultText{{OriginalName: "cv.pdf", FullText: "texto"}}}
	gw := &stubGateway{quotaErr: true, err: errors.New("429 resource exhausted")}
	conv := NewConversation(store, gw, 15000, 10)

	_, quota, err := conv.Reply(context.Background(), "b1", "pergunta")
	assert.Error(t, err)
	assert.True(t, quota)
	assert.Empty(t, store.turns)
}
