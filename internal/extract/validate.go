package extract

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

// Input limits. Requests violating them are rejected before any extraction
// or LLM work happens.
const (
	MaxURLLength      = 2048
	MinQuestionLength = 3
	MaxQuestionLength = 1000
	MaxUploadSize     = 16 << 20
)

// ValidateURL checks shape and length. Only http and https are accepted.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("extract: url is required")
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("extract: url exceeds %d characters", MaxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("extract: invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("extract: url scheme must be http or https")
	}
	if parsed.Host == "" || !strings.Contains(parsed.Host, ".") {
		return fmt.Errorf("extract: url has no valid host")
	}
	return nil
}

// ValidateQuestion checks length bounds and that the question contains at
// least one letter.
func ValidateQuestion(question string) error {
	question = strings.TrimSpace(question)
	if len(question) < MinQuestionLength {
		return fmt.Errorf("extract: question must be at least %d characters", MinQuestionLength)
	}
	if len(question) > MaxQuestionLength {
		return fmt.Errorf("extract: question exceeds %d characters", MaxQuestionLength)
	}
	for _, r := range question {
		if unicode.IsLetter(r) {
			return nil
		}
	}
	return fmt.Errorf("extract: question must contain letters")
}

// ValidateUpload checks the filename extension and declared size before the
// file content is read.
func ValidateUpload(filename string, size int64) error {
	if filename == "" {
		return fmt.Errorf("extract: no file selected")
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".pdf" {
		return fmt.Errorf("extract: only pdf uploads are supported, got %q", ext)
	}
	if size <= 0 {
		return fmt.Errorf("extract: empty upload")
	}
	if size > MaxUploadSize {
		return fmt.Errorf("extract: file size %d exceeds maximum %d bytes", size, MaxUploadSize)
	}
	return nil
}
