package generate

import (
	"context"
	"sync"

	llm "github.com/randalmurphal/llmkit/claude"
)

// ClientCompleter runs prompts through flowgraph LLM clients, one client per
// model name.
type ClientCompleter struct {
	mu      sync.Mutex
	clients map[string]llm.Client
	factory func(model string) llm.Client
}

// NewClientCompleter uses c for every model.
func NewClientCompleter(c llm.Client) *ClientCompleter {
	return &ClientCompleter{
		clients: make(map[string]llm.Client),
		factory: func(string) llm.Client { return c },
	}
}

// NewClaudeCompleter runs prompts through the Claude CLI, creating one
// client per requested model.
func NewClaudeCompleter(workdir string) *ClientCompleter {
	return &ClientCompleter{
		clients: make(map[string]llm.Client),
		factory: func(model string) llm.Client {
			if model == "" {
				return llm.NewClaudeCLI(
					llm.WithWorkdir(workdir),
					llm.WithDangerouslySkipPermissions(), // non-interactive
				)
			}
			return llm.NewClaudeCLI(
				llm.WithModel(model),
				llm.WithWorkdir(workdir),
				llm.WithDangerouslySkipPermissions(),
			)
		},
	}
}

func (c *ClientCompleter) client(model string) llm.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[model]
	if !ok {
		cl = c.factory(model)
		c.clients[model] = cl
	}
	return cl
}

// Complete implements Completer.
func (c *ClientCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := c.client(p.Model).Complete(ctx, llm.CompletionRequest{
		SystemPrompt: p.System,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: p.User}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
