package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Validation limits.
const (
	DefaultMaxMessageSize = 1 << 20 // 1 MiB
	DefaultMaxJSONDepth   = 32
)

// Validation errors.
var (
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
	ErrJSONTooDeep     = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON     = errors.New("invalid JSON")
)

// ValidateMessageSize checks that data does not exceed limit bytes.
// If limit is <= 0, DefaultMaxMessageSize is used.
func ValidateMessageSize(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxMessageSize
	}
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, len(data), limit)
	}
	return nil
}

// ValidateJSONDepth checks that the JSON in data does not nest deeper
// than limit levels. If limit is <= 0, DefaultMaxJSONDepth is used.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if depth == 0 {
					return nil
				}
				return fmt.Errorf("%w: %w", ErrInvalidJSON, io.ErrUnexpectedEOF)
			}
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}

// DecodeJSON reads at most limit bytes from r, checks nesting depth and
// unmarshals into v. A body one byte over the limit is rejected rather
// than truncated.
func DecodeJSON(r io.Reader, limit int, v any) error {
	if limit <= 0 {
		limit = DefaultMaxMessageSize
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if err := ValidateMessageSize(data, limit); err != nil {
		return err
	}
	if err := ValidateJSONDepth(data, 0); err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return nil
}
