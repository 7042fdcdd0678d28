package pipeline

import (
	"path/filepath"
	"strings"
)

// Directly analyzable document types, and the container type expanded
// before analysis.
const archiveExt = ".zip"

var documentExts = map[string]bool{
	".pdf":  true,
	".docx": true,
}

// AllowedDocumentFile reports whether the name is a directly-analyzable
// document (the worklist filter).
func AllowedDocumentFile(name string) bool {
	return documentExts[strings.ToLower(filepath.Ext(name))]
}

// AllowedUploadFile reports whether the name may be accepted at upload
// time: documents plus container archives.
func AllowedUploadFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return documentExts[ext] || ext == archiveExt
}

// IsArchive reports whether the name is a container archive.
func IsArchive(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == archiveExt
}
