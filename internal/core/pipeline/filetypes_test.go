package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedDocumentFile(t *testing.T) {
	assert.True(t, AllowedDocumentFile("cv.pdf"))
	assert.True(t, AllowedDocumentFile("CV.DOCX"))
	assert.False(t, AllowedDocumentFile("cvs.zip"))
	assert.False(t, AllowedDocumentFile("notas.txt"))
	assert.False(t, AllowedDocumentFile("sem-extensao"))
}

func TestAllowedUploadFile(t *testing.T) {
	assert.True(t, AllowedUploadFile("cv.pdf"))
	assert.True(t, AllowedUploadFile("lote.ZIP"))
	assert.False(t, AllowedUploadFile("foto.png"))
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("lote.zip"))
	assert.False(t, IsArchive("cv.pdf"))
}
