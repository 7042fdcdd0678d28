package docreader

import (
	"fmt"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/cvflow/internal/core"
)

var _ core.DocumentReader = (*DocconvReader)(nil)

// DocconvReader extracts plain text from PDF and DOCX files on disk.
type DocconvReader struct{}

func NewDocconvReader() *DocconvReader {
	return &DocconvReader{}
}

// ReadText converts the file at path to plain text. Only .pdf and .docx are
// dispatched; the pipeline filters anything else out before reaching here.
func (r *DocconvReader) ReadText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" && ext != ".docx" {
		return "", fmt.Errorf("unsupported document type: %s", ext)
	}

	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("docconv %s: %w", filepath.Base(path), err)
	}
	if res == nil {
		return "", nil
	}
	return res.Body, nil
}
