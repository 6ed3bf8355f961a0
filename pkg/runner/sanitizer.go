package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/appsail/convo/pkg/domain"
)

var (
	// DefaultMaxInputSize is 4KB (conservative default)
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "CONVO_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput cleans user input with the default size limit.
func SanitizeInput(input string) (string, error) {
	return SanitizeInputLimit(input, 0)
}

// SanitizeInputLimit cleans user input by enforcing a size limit,
// validating UTF-8, and stripping dangerous control characters.
// A limit <= 0 uses the environment override or DefaultMaxInputSize.
func SanitizeInputLimit(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = getMaxInputSize()
	}
	if len(input) > limit {
		// Rejected rather than truncated so the stored answer is exactly what was sent.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Newline, tab and carriage return survive. ANSI escapes, NULL, BEL and
	// friends are removed to keep logs and stored history clean.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// sanitizeMessage returns a copy of msg with user supplied text cleaned.
func sanitizeMessage(msg *domain.InboundMessage, limit int) (*domain.InboundMessage, error) {
	cp := *msg
	if cp.Text != "" {
		text, err := SanitizeInputLimit(cp.Text, limit)
		if err != nil {
			return nil, fmt.Errorf("%w: text: %v", domain.ErrMalformedPayload, err)
		}
		cp.Text = text
	}
	if msg.Selection != nil {
		sel := *msg.Selection
		label, err := SanitizeInputLimit(sel.Text, limit)
		if err != nil {
			return nil, fmt.Errorf("%w: selection: %v", domain.ErrMalformedPayload, err)
		}
		sel.Text = label
		cp.Selection = &sel
	}
	return &cp, nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func getMaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
