package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/cvflow/internal/core"
	"github.com/markdave123-py/cvflow/internal/core/pipeline"
	"github.com/markdave123-py/cvflow/internal/models"
)

type FileHandler struct {
	store  core.Store
	reader core.DocumentReader
}

func NewFileHandler(store core.Store, reader core.DocumentReader) *FileHandler {
	return &FileHandler{store: store, reader: reader}
}

// GetFileContent re-extracts and returns the full text of a stored file.
func (h *FileHandler) GetFileContent(w http.ResponseWriter, r *http.Request) {
	rec, status, msg := h.lookup(r)
	if rec == nil {
		writeError(w, status, msg)
		return
	}
	if !pipeline.AllowedDocumentFile(rec.OriginalName) {
		writeError(w, http.StatusBadRequest, "Tipo de arquivo não suportado para extração de texto.")
		return
	}

	text, err := h.reader.ReadText(rec.SavedPath)
	if err != nil {
		log.Printf("Erro ao extrair texto do arquivo %d: %v", rec.ID, err)
		writeError(w, http.StatusInternalServerError, "Erro ao extrair o texto do arquivo.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"filename": rec.OriginalName,
		"content":  text,
	})
}

// DownloadFile serves the stored original as an attachment.
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	rec, status, msg := h.lookup(r)
	if rec == nil {
		writeError(w, status, msg)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.OriginalName))
	http.ServeFile(w, r, rec.SavedPath)
}

func (h *FileHandler) lookup(r *http.Request) (rec *models.FileRecord, status int, msg string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "fileID"), 10, 64)
	if err != nil {
		return nil, http.StatusBadRequest, "ID de arquivo inválido."
	}
	f, err := h.store.GetFileByID(r.Context(), id)
	if err != nil {
		log.Printf("Erro ao carregar arquivo %d: %v", id, err)
		return nil, http.StatusInternalServerError, "Erro ao carregar o arquivo."
	}
	if f == nil {
		return nil, http.StatusNotFound, "Arquivo não encontrado."
	}
	if _, err := os.Stat(f.SavedPath); err != nil {
		return nil, http.StatusNotFound, "Arquivo não está mais disponível no servidor."
	}
	return f, http.StatusOK, ""
}
