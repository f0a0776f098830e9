package chat

import (
	"context"
	"fmt"
	"slices"

	ctxengine "github.com/flemzord/brandai/internal/context"
	"github.com/flemzord/brandai/internal/memory"
	"github.com/flemzord/brandai/internal/provider"
)

// HistoryTurns is how many stored turns precede a new conversation turn.
const HistoryTurns = 20

// ActivityChat is the activity log kind recorded for conversation turns.
const ActivityChat = "chat"

// HistoryStore is the part of the collaborator store a persisted
// conversation needs.
type HistoryStore interface {
	ctxengine.Source
	GetConversation(ctx context.Context, id string) (memory.Conversation, error)
	AppendMessage(ctx context.Context, m memory.ChatMessage) (string, error)
	LogActivity(ctx context.Context, brandID, kind, description string) error
}

// Converse sends req as the next turn of a stored conversation. The last
// HistoryTurns stored turns are prepended to req.Messages, the new turns
// are stored before dispatch and the reply after a successful stream.
// The conversation's brand is used when req names none. A missing
// conversation fails with memory.ErrNotFound before any network activity.
func (r *Router) Converse(ctx context.Context, store HistoryStore, conversationID string, req SendRequest) (string, error) {
	conv, err := store.GetConversation(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("chat: loading conversation: %w", err)
	}
	if err := validateMessages(req.Messages); err != nil {
		return "", err
	}
	if req.BrandID == "" {
		req.BrandID = conv.BrandID
	}

	asm := ctxengine.NewAssembler(store, ctxengine.Config{HistoryLimit: HistoryTurns}, r.logger)
	history, err := asm.BuildConversationContext(ctx, conv.ID, HistoryTurns)
	if err != nil {
		return "", fmt.Errorf("chat: loading history: %w", err)
	}

	for _, m := range req.Messages {
		if _, err := store.AppendMessage(ctx, memory.ChatMessage{
			ConversationID: conv.ID,
			Role:           string(m.Role),
			Content:        m.Content,
		}); err != nil {
			return "", fmt.Errorf("chat: storing turn: %w", err)
		}
	}

	// Stored system turns would be rejected by Send; the preamble replaces them.
	history = slices.DeleteFunc(history, func(m provider.Message) bool {
		return m.Role != provider.RoleUser && m.Role != provider.RoleAssistant
	})
	req.Messages = append(history, req.Messages...)
	text, err := r.Send(ctx, req)
	if err != nil {
		return text, err
	}

	if _, err := store.AppendMessage(ctx, memory.ChatMessage{
		ConversationID: conv.ID,
		Role:           string(provider.RoleAssistant),
		Content:        text,
	}); err != nil {
		return text, fmt.Errorf("chat: storing reply: %w", err)
	}

	if req.BrandID != "" {
		desc := fmt.Sprintf("Chat with %s in %q", r.providerName(req.Provider), conv.Title)
		if err := store.LogActivity(ctx, req.BrandID, ActivityChat, desc); err != nil {
			r.logger.Warn("activity log failed", "brand_id", req.BrandID, "error", err)
		}
	}
	return text, nil
}

func (r *Router) providerName(id provider.ID) string {
	if id == "" {
		id = r.defaultProvider
	}
	if e, ok := r.registry.Lookup(id); ok && e.Name != "" {
		return e.Name
	}
	return string(id)
}
