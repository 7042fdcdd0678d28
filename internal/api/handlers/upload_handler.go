package handlers

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/cvflow/internal/config"
	"github.com/markdave123-py/cvflow/internal/core"
	"github.com/markdave123-py/cvflow/internal/core/pipeline"
	"github.com/markdave123-py/cvflow/internal/models"
)

type UploadHandler struct {
	store core.Store
	cfg   *config.Config
}

func NewUploadHandler(store core.Store, cfg *config.Config) *UploadHandler {
	return &UploadHandler{store: store, cfg: cfg}
}

type receivedFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CreateBatch accepts a multipart upload, stores the accepted files under
// the batch folder and registers the batch as pending. Disallowed files are
// reported back but never stored. With zero accepted files the batch folder
// is removed and nothing is registered.
func (h *UploadHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadMB << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Envio inválido ou acima do limite de tamanho.")
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeError(w, http.StatusBadRequest, "Nenhum arquivo enviado.")
		return
	}

	flags := map[string]bool{
		models.FlagGenerateReport: r.FormValue(models.FlagGenerateReport) == "true",
		models.FlagSearchWeb:      r.FormValue(models.FlagSearchWeb) == "true",
	}
	instruction := strings.TrimSpace(r.FormValue("initial_instruction"))

	batchID := uuid.NewString()
	batchDir := filepath.Join(h.cfg.UploadDir, batchID)
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		log.Printf("Erro ao criar pasta do lote %s: %v", batchID, err)
		writeError(w, http.StatusInternalServerError, "Erro ao preparar o lote.")
		return
	}

	received := make([]receivedFile, 0, len(fileHeaders))
	type savedFile struct {
		name string
		path string
	}
	var saved []savedFile

	for _, fh := range fileHeaders {
		name := filepath.Base(fh.Filename)
		if name == "" || name == "." || !pipeline.AllowedUploadFile(name) {
			received = append(received, receivedFile{Filename: fh.Filename, Error: "Tipo de arquivo não permitido."})
			continue
		}

		dest := uniquePath(batchDir, name)
		if err := saveUpload(fh, dest); err != nil {
			log.Printf("Erro ao salvar %s no lote %s: %v", name, batchID, err)
			received = append(received, receivedFile{Filename: name, Error: "Falha ao salvar o arquivo."})
			continue
		}
		saved = append(saved, savedFile{name: filepath.Base(dest), path: dest})
		received = append(received, receivedFile{Filename: filepath.Base(dest), Status: "recebido"})
	}

	if len(saved) == 0 {
		_ = os.RemoveAll(batchDir)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          "Nenhum arquivo válido enviado (PDF, DOCX ou ZIP).",
			"files_received": received,
		})
		return
	}

	batch := &models.Batch{ID: batchID, Status: models.BatchStatusPending, Flags: flags, InitialInstruction: instruction}
	if err := h.store.CreateBatch(r.Context(), batch); err != nil {
		log.Printf("Erro ao registrar lote %s: %v", batchID, err)
		_ = os.RemoveAll(batchDir)
		writeError(w, http.StatusInternalServerError, "Erro ao registrar o lote.")
		return
	}
	for _, sf := range saved {
		rec := &models.FileRecord{BatchID: batchID, OriginalName: sf.name, SavedPath: sf.path}
		if _, err := h.store.CreateFile(r.Context(), rec); err != nil {
			log.Printf("Erro ao registrar arquivo %s do lote %s: %v", sf.name, batchID, err)
			writeError(w, http.StatusInternalServerError, "Erro ao registrar os arquivos do lote.")
			return
		}
	}

	log.Printf("Lote %s criado com %d arquivo(s)", batchID, len(saved))
	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id":       batchID,
		"files_received": received,
	})
}

// uniquePath resolves name collisions inside dir with a counter suffix,
// keeping the extension.
func uniquePath(dir, name string) string {
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
	}
}

func saveUpload(fh *multipart.FileHeader, dest string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
