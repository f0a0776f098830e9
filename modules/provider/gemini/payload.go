package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flemzord/brandai/internal/provider"
)

// Gemini role names. Assistant turns are "model" on the wire.
const (
	roleUser  = "user"
	roleModel = "model"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// text returns candidates[0].content.parts[0].text, if present.
func (c *generateChunk) text() (string, bool) {
	if len(c.Candidates) == 0 {
		return "", false
	}
	parts := c.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == nil {
		return "", false
	}
	s := *parts[0].Text
	return s, s != ""
}

// toGenerateRequest removes system turns from the conversation and sends
// the first of them as the system instruction.
func toGenerateRequest(msgs []provider.Message) generateRequest {
	req := generateRequest{Contents: make([]content, 0, len(msgs))}
	for _, m := range msgs {
		switch m.Role {
		case provider.RoleSystem:
			if req.SystemInstruction == nil {
				req.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			}
		case provider.RoleAssistant:
			req.Contents = append(req.Contents, content{Role: roleModel, Parts: []part{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: roleUser, Parts: []part{{Text: m.Content}}})
		}
	}
	return req
}

// decodeLine implements provider.LineDecoder. The stream has no end
// marker; it ends when the server closes the body.
func decodeLine(line string) (string, bool, error) {
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false, nil
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return "", false, nil
	}

	var chunk generateChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, fmt.Errorf("gemini: decode chunk: %w", err)
	}
	delta, ok := chunk.text()
	return delta, ok, nil
}
