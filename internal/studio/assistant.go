package studio

import (
	"context"
	"strings"

	"eagle-studio/internal/gemini"
	"eagle-studio/internal/prompt"
)

// Ask sends one assistant turn with the key's conversation so far and records both sides.
func (s *Service) Ask(ctx context.Context, key, text string) (string, error) {
	req, err := prompt.Assistant(text)
	if err != nil {
		return "", err
	}

	var history []gemini.Message
	if s.history != nil {
		history = s.history.History(key)
	}
	resp, err := s.gen.Chat(ctx, history, req)
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", ErrNoResult
	}

	if s.history != nil {
		s.history.Append(key,
			gemini.Message{Role: "user", Text: strings.TrimSpace(text)},
			gemini.Message{Role: "model", Text: reply},
		)
	}
	return reply, nil
}
