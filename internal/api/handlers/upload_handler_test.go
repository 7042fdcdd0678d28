package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/cvflow/internal/config"
	"github.com/markdave123-py/cvflow/internal/models"
)

type uploadResponse struct {
	BatchID       string         `json:"batch_id"`
	Error         string         `json:"error"`
	FilesReceived []receivedFile `json:"files_received"`
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postUpload(t *testing.T, h *UploadHandler, fields map[string]string, files map[string]string) (*httptest.ResponseRecorder, uploadResponse) {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.CreateBatch(rr, req)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return rr, resp
}

func testUploadHandler(store *fakeStore, dir string) *UploadHandler {
	return NewUploadHandler(store, &config.Config{UploadDir: dir, MaxUploadMB: 16})
}

func TestCreateBatchHappyPath(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	h := testUploadHandler(store, dir)

	rr, resp := postUpload(t, h,
		map[string]string{
			models.FlagGenerateReport: "true",
			"initial_instruction":     "  Compare os candidatos  ",
		},
		map[string]string{"cv.pdf": "conteudo", "notas.txt": "ignorar"},
	)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, resp.BatchID)

	batch := store.batches[resp.BatchID]
	require.NotNil(t, batch)
	assert.Equal(t, models.BatchStatusPending, batch.Status)
	assert.True(t, batch.Flags[models.FlagGenerateReport])
	assert.False(t, batch.Flags[models.FlagSearchWeb])
	assert.Equal(t, "Compare os candidatos", batch.InitialInstruction)

	require.Len(t, store.files, 1)
	var rec *models.FileRecord
	for _, f := range store.files {
		rec = f
	}
	assert.Equal(t, "cv.pdf", rec.OriginalName)
	assert.False(t, rec.ExtractedFromArchive)
	_, err := os.Stat(rec.SavedPath)
	assert.NoError(t, err)

	byName := map[string]receivedFile{}
	for _, f := range resp.FilesReceived {
		byName[f.Filename] = f
	}
	assert.Equal(t, "recebido", byName["cv.pdf"].Status)
	assert.Equal(t, "Tipo de arquivo não permitido.", byName["notas.txt"].Error)
}

func TestCreateBatchNoFiles(t *testing.T) {
	h := testUploadHandler(newFakeStore(), t.TempDir())
	rr, resp := postUpload(t, h, nil, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Nenhum arquivo enviado.", resp.Error)
}

func TestCreateBatchAllFilesRejected(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	h := testUploadHandler(store, dir)

	rr, resp := postUpload(t, h, nil, map[string]string{"a.txt": "x", "b.png": "y"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, resp.Error, "Nenhum arquivo válido")
	assert.Len(t, resp.FilesReceived, 2)
	assert.Empty(t, store.batches)
	assert.Empty(t, store.files)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "batch folder must be removed when nothing is accepted")
}

func TestCreateBatchAcceptsZip(t *testing.T) {
	store := newFakeStore()
	h := testUploadHandler(store, t.TempDir())

	rr, resp := postUpload(t, h, nil, map[string]string{"lote.zip": "PK..."})

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, store.files, 1)
	assert.NotEmpty(t, resp.BatchID)
}

func TestUniquePathResolvesCollisions(t *testing.T) {
	dir := t.TempDir()
	first := uniquePath(dir, "cv.pdf")
	assert.Equal(t, filepath.Join(dir, "cv.pdf"), first)
	require.NoError(t, os.WriteFile(first, []byte("a"), 0o644))

	second := uniquePath(dir, "cv.pdf")
	assert.Equal(t, filepath.Join(dir, "cv_1.pdf"), second)
	require.NoError(t, os.WriteFile(second, []byte("b"), 0o644))

	third := uniquePath(dir, "cv.pdf")
	assert.Equal(t, filepath.Join(dir, "cv_2.pdf"), third)
}
