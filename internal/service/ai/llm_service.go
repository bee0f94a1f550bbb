package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Service runs questions through a compiled prompt → chat model chain.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the question chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile question chain: %w", err)
	}

	return &Service{chain: runnable}, nil
}

// Ask sends question through the chain. opts are forwarded to the chat model.
func (s *Service) Ask(ctx context.Context, question string, opts ...model.Option) (*schema.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	response, err := s.chain.Invoke(ctx, map[string]any{"query": question}, compose.WithChatModelOption(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to run question chain: %w", err)
	}

	log.Printf("[ai] answered question, length=%d", len(response.Content))
	return response, nil
}
