package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/flemzord/brandai/internal/provider"
)

// doneSentinel terminates the event stream; it is never content.
const doneSentinel = "[DONE]"

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []provider.Message `json:"messages"`
	Stream   bool               `json:"stream"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// text returns choices[0].delta.content, if the chunk carries any.
func (c *chatStreamChunk) text() (string, bool) {
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == nil {
		return "", false
	}
	s := *c.Choices[0].Delta.Content
	return s, s != ""
}

// decodeLine implements provider.LineDecoder for the SSE framing.
// Comments, event names and ids are ignored; only data lines carry
// payload.
func decodeLine(line string) (string, bool, error) {
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false, nil
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return "", false, nil
	}
	if data == doneSentinel {
		return "", false, io.EOF
	}

	var chunk chatStreamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, fmt.Errorf("openai: decode chunk: %w", err)
	}
	delta, ok := chunk.text()
	return delta, ok, nil
}
