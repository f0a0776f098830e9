package chat

import "errors"

// ErrInvalidRequest indicates a send request whose message list cannot be
// dispatched: it is empty, or carries a system turn, or a turn with an
// unknown role. System content travels in SendRequest.SystemPrompt.
var ErrInvalidRequest = errors.New("chat: invalid request")
