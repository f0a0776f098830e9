package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/flemzord/brandai/internal/chat"
	"github.com/flemzord/brandai/internal/provider"
	"github.com/flemzord/brandai/pkg/app"
	"github.com/spf13/cobra"
)

// chatOptions are the flags of `brandai chat`.
type chatOptions struct {
	provider     string
	model        string
	brand        string
	conversation string
	system       string
}

func (o chatOptions) request(messages []provider.Message, out io.Writer) chat.SendRequest {
	return chat.SendRequest{
		Provider:     provider.ID(o.provider),
		Model:        o.model,
		Messages:     messages,
		SystemPrompt: o.system,
		BrandID:      o.brand,
		OnChunk: func(delta, _ string) {
			_, _ = io.WriteString(out, delta)
		},
	}
}

func chatCmd() *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message, or start an interactive session when none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				s := &chatSession{router: rt.Router, store: rt.Store, opts: opts, out: cmd.OutOrStdout()}
				if len(args) > 0 {
					_, err := s.turn(ctx, strings.Join(args, " "))
					return err
				}
				return s.repl(ctx, cmd.InOrStdin(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "Provider id (defaults to chat.provider)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model override")
	cmd.Flags().StringVarP(&opts.brand, "brand", "b", "", "Brand id whose context is injected")
	cmd.Flags().StringVar(&opts.conversation, "conversation", "", "Stored conversation to continue")
	cmd.Flags().StringVarP(&opts.system, "system", "s", "", "System prompt replacing the brand context")
	return cmd
}

// chatSession keeps the in-memory history of an interactive session. With
// a conversation id the store holds the history instead.
type chatSession struct {
	router  *chat.Router
	store   chat.HistoryStore
	opts    chatOptions
	out     io.Writer
	history []provider.Message
}

// turn sends one user message, streaming the reply to out.
func (s *chatSession) turn(ctx context.Context, text string) (string, error) {
	user := provider.Message{Role: provider.RoleUser, Content: text}

	var (
		reply string
		err   error
	)
	if s.opts.conversation != "" {
		reply, err = s.router.Converse(ctx, s.store, s.opts.conversation, s.opts.request([]provider.Message{user}, s.out))
	} else {
		msgs := append(s.history[:len(s.history):len(s.history)], user)
		reply, err = s.router.Send(ctx, s.opts.request(msgs, s.out))
		if err == nil {
			s.history = append(msgs, provider.Message{Role: provider.RoleAssistant, Content: reply})
		}
	}
	if err != nil {
		return "", err
	}
	_, _ = fmt.Fprintln(s.out)
	return reply, nil
}

// repl reads one message per line until EOF or "/exit". A failed turn is
// reported and the session continues.
func (s *chatSession) repl(ctx context.Context, in io.Reader, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		_, _ = fmt.Fprint(errOut, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			s.history = nil
			continue
		}
		if _, err := s.turn(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			_, _ = fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}
	return scanner.Err()
}
