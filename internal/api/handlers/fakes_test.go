package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/markdave123-py/cvflow/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	batches map[string]*models.Batch
	files   map[int64]*models.FileRecord
	nextID  int64
	texts   []models.ResultText
	turns   []*models.ChatTurn
}

func newFakeStore() *fakeStore {
	return &fakeStore{batches: map[string]*models.Batch{}, files: map[int64]*models.FileRecord{}}
}

func (s *fakeStore) CreateBatch(_ context.Context, b *models.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
	return nil
}

func (s *fakeStore) GetBatch(_ context.Context, id string) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) BeginProcessing(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok || b.Status != models.BatchStatusPending {
		return false, nil
	}
	b.Status = models.BatchStatusProcessing
	return true, nil
}

func (s *fakeStore) UpdateBatchStatus(_ context.Context, id, status string, quotaError *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("batch %s not found", id)
	}
	b.Status = status
	if quotaError != nil {
		b.QuotaErrorSeen = b.QuotaErrorSeen || *quotaError
	}
	return nil
}

func (s *fakeStore) CreateFile(_ context.Context, f *models.FileRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	f.ID = s.nextID
	cp := *f
	s.files[f.ID] = &cp
	return f.ID, nil
}

func (s *fakeStore) GetFileByID(_ context.Context, id int64) (*models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (s *fakeStore) GetBatchFiles(_ context.Context, batchID string, onlyInitial bool) ([]models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FileRecord
	for id := int64(1); id <= s.nextID; id++ {
		f, ok := s.files[id]
		if !ok || f.BatchID != batchID {
			continue
		}
		if onlyInitial && f.ExtractedFromArchive {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

func (s *fakeStore) CreateResults(context.Context, []*models.Result) error { return nil }

func (s *fakeStore) GetBatchResultTexts(context.Context, string) ([]models.ResultText, error) {
	return s.texts, nil
}

func (s *fakeStore) CreateChatTurn(_ context.Context, turn *models.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return nil
}

func (s *fakeStore) GetChatHistory(context.Context, string, int) ([]models.ChatTurn, error) {
	return nil, nil
}

type fakeGateway struct {
	chatCalls int
	reply     string
	quotaErr  bool
	err       error
}

func (g *fakeGateway) ExtractData(context.Context, string) (map[string]any, string, bool) {
	return nil, "", false
}
func (g *fakeGateway) GenerateReport(context.Context, map[string]any, string, string, string) (bool, string, bool) {
	return false, "", false
}
func (g *fakeGateway) SummarizeWeb(context.Context, string) (string, *string, bool) {
	return "", nil, false
}

func (g *fakeGateway) Chat(context.Context, string) (string, bool, error) {
	g.chatCalls++
	return g.reply, g.quotaErr, g.err
}
