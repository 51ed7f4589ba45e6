package services

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FileValidator screens provider export files before an import run starts.
// A file that fails validation is a format rejection: the run never begins
// and no partial state is produced.
type FileValidator struct {
	maxSizeBytes int64
}

// ValidationResult carries the outcome of pre-import file validation.
type ValidationResult struct {
	Valid        bool
	DetectedType string // "CSV" or "XLSX"
	Size         int64
	Errors       []string
}

var xlsxMagic = []byte{0x50, 0x4B, 0x03, 0x04} // XLSX is a ZIP container

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

// NewFileValidator creates a validator enforcing the given size cap.
func NewFileValidator(maxSizeBytes int64) *FileValidator {
	return &FileValidator{maxSizeBytes: maxSizeBytes}
}

// Validate checks the filename and the already-read file content.
func (v *FileValidator) Validate(filename string, data []byte) *ValidationResult {
	result := &ValidationResult{Valid: true, Size: int64(len(data))}

	if err := v.ValidateFilename(filename); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}
	if err := v.ValidateSize(result.Size); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	detected, err := DetectContentType(data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.DetectedType = detected

	// The extension drives reader dispatch, so it must agree with what the
	// bytes actually are.
	ext := strings.ToLower(filepath.Ext(filename))
	if (ext == ".csv" && detected != "CSV") || (ext == ".xlsx" && detected != "XLSX") {
		result.Valid = false
		result.Errors = append(result.Errors, "file extension does not match file content")
	}
	return result
}

// ValidateFilename rejects empty, traversal-prone and unsupported names.
func (v *FileValidator) ValidateFilename(filename string) error {
	if filename == "" {
		return errors.New("filename cannot be empty")
	}
	if strings.Contains(filename, "..") {
		return errors.New("filename contains path traversal")
	}
	if strings.Contains(filename, "\x00") {
		return errors.New("filename contains null bytes")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return errors.New("filename must have an extension")
	}
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported file extension: %s", ext)
	}
	return nil
}

// ValidateSize enforces the non-empty lower bound and the configured cap.
func (v *FileValidator) ValidateSize(size int64) error {
	if size == 0 {
		return errors.New("empty file")
	}
	if size > v.maxSizeBytes {
		return fmt.Errorf("file size (%d bytes) exceeds maximum allowed size (%d bytes)", size, v.maxSizeBytes)
	}
	return nil
}

// DetectContentType sniffs the file type from its leading bytes: the ZIP
// signature marks XLSX, printable text marks CSV.
func DetectContentType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty file")
	}
	if bytes.HasPrefix(data, xlsxMagic) {
		return "XLSX", nil
	}
	if isTextContent(data) {
		return "CSV", nil
	}
	return "", errors.New("unsupported file type based on content")
}

// isTextContent checks the first 512 bytes for binary noise; delimited
// provider exports are plain ASCII-ish text.
func isTextContent(data []byte) bool {
	checkLen := min(len(data), 512)
	sample := data[:checkLen]

	if bytes.Contains(sample, []byte{0x00}) {
		return false
	}

	printable := 0
	for _, b := range sample {
		if (b >= 0x20 && b <= 0x7E) || b == 0x09 || b == 0x0A || b == 0x0D {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) > 0.95
}
