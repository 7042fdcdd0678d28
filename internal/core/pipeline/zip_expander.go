package pipeline

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// RegisterFunc persists one extracted entry as a new file record and
// returns its id. A zero id with nil error means the entry was not
// registered.
type RegisterFunc func(batchID, displayName, extractedPath string) (int64, error)

// ExpandArchive enumerates a zip file and extracts every analyzable entry
// into destDir, registering each one through the callback. It returns a
// lazily produced, single-pass event sequence; extraction happens as the
// sequence is consumed. The channel is closed when the pass finishes.
//
// Entries that are directories, absolute, or contain parent traversal are
// rejected outright, never sanitized. A corrupt archive produces a single
// error event and ends the sequence; a failure on one entry produces an
// error event for that entry only.
func ExpandArchive(zipPath, destDir, batchID string, register RegisterFunc) <-chan Event {
	out := make(chan Event, 8)

	go func() {
		defer close(out)

		base := filepath.Base(zipPath)
		zr, err := zip.OpenReader(zipPath)
		if err != nil {
			log.Printf("Erro ao abrir ZIP %s: %v", base, err)
			if errors.Is(err, zip.ErrFormat) {
				out <- Event{Type: EventError, Filename: base, Message: "Arquivo ZIP corrompido."}
			} else {
				out <- Event{Type: EventError, Filename: base, Message: "Erro geral ao extrair ZIP."}
			}
			return
		}
		defer zr.Close()

		extracted := 0
		for _, entry := range zr.File {
			name := entry.Name
			if entry.FileInfo().IsDir() || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
				continue
			}

			displayName := path.Base(name)
			if displayName == "" || displayName == "." || !AllowedDocumentFile(displayName) {
				out <- Event{Type: EventWarning, Filename: base, Message: fmt.Sprintf("Ignorando item ZIP: %s", name)}
				continue
			}

			target := filepath.Join(destDir, filepath.FromSlash(name))
			if err := extractEntry(entry, target); err != nil {
				log.Printf("Erro ao extrair item %s: %v", name, err)
				out <- Event{Type: EventError, Filename: base, Message: fmt.Sprintf("Erro ao extrair item %s", name)}
				continue
			}

			id, err := register(batchID, displayName, target)
			if err != nil {
				log.Printf("Erro ao registrar item %s: %v", name, err)
				out <- Event{Type: EventError, Filename: base, Message: fmt.Sprintf("Erro ao extrair item %s", name)}
				continue
			}
			if id != 0 {
				extracted++
			}
		}

		out <- Event{
			Type:     EventStatus,
			Filename: base,
			Message:  fmt.Sprintf("ZIP extraído. %d CVs válidos encontrados.", extracted),
		}
	}()

	return out
}

func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
