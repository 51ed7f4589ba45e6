package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_CSV(t *testing.T) {
	v := NewFileValidator(10 << 20)
	data := []byte("invoice,amt\nINV1,100.00\n")

	result := v.Validate("march_export.csv", data)
	assert.True(t, result.Valid)
	assert.Equal(t, "CSV", result.DetectedType)
	assert.Equal(t, int64(len(data)), result.Size)
	assert.Empty(t, result.Errors)
}

func TestValidate_XLSXMagic(t *testing.T) {
	v := NewFileValidator(10 << 20)
	data := append([]byte{0x50, 0x4B, 0x03, 0x04}, bytes.Repeat([]byte{0xFF}, 64)...)

	result := v.Validate("march_export.xlsx", data)
	assert.True(t, result.Valid)
	assert.Equal(t, "XLSX", result.DetectedType)
}

func TestValidate_BinaryContentRejected(t *testing.T) {
	v := NewFileValidator(10 << 20)
	pdf := append([]byte("%PDF-1.4"), bytes.Repeat([]byte{0x00, 0xC3, 0x81}, 100)...)

	result := v.Validate("report.csv", pdf)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "unsupported file type")
}

func TestValidate_ExtensionContentMismatch(t *testing.T) {
	v := NewFileValidator(10 << 20)

	// Plain text named as a workbook.
	result := v.Validate("export.xlsx", []byte("invoice,amt\nINV1,100.00\n"))
	assert.False(t, result.Valid)
	assert.Contains(t, strings.Join(result.Errors, "; "), "does not match file content")
}

func TestValidateFilename(t *testing.T) {
	v := NewFileValidator(10 << 20)

	assert.NoError(t, v.ValidateFilename("export.csv"))
	assert.NoError(t, v.ValidateFilename("Export March 2024.XLSX"))
	assert.Error(t, v.ValidateFilename(""))
	assert.Error(t, v.ValidateFilename("../../etc/passwd.csv"))
	assert.Error(t, v.ValidateFilename("bad\x00name.csv"))
	assert.Error(t, v.ValidateFilename("noextension"))
	assert.Error(t, v.ValidateFilename("statement.pdf"))
	assert.Error(t, v.ValidateFilename("archive.zip"))
}

func TestValidateSize(t *testing.T) {
	v := NewFileValidator(100)

	assert.Error(t, v.ValidateSize(0))
	assert.NoError(t, v.ValidateSize(100))
	assert.Error(t, v.ValidateSize(101))
}

func TestDetectContentType_Empty(t *testing.T) {
	_, err := DetectContentType(nil)
	assert.Error(t, err)
}
