package bridge

import (
	"context"
	"errors"
	"strings"

	"github.com/ultralan/HakiMeet/pkg/cli"
)

// DefaultGreeting is spoken when the prompt file sets no greeting.
const DefaultGreeting = "你好，我是今天的面试官。请先做一个简单的自我介绍吧。"

// Prompt is everything the bridge sends upstream when a dialogue starts.
type Prompt struct {
	SystemRole string
	Greeting   string
	Context    []string
	Speaker    string
}

// PromptSupplier builds the prompt for one interview.
type PromptSupplier interface {
	Prompt(ctx context.Context, interviewID string) (*Prompt, error)
}

// StaticPrompts serves the same prompt to every interview.
//
// Example prompts.yaml:
//
//	system_role: |
//	  你是一名资深后端面试官……
//	greeting: 你好，我是今天的面试官。
//	speaker: zh_male_yunzhou_jupiter_bigtts
//	context:
//	  - 候选人简历: ……
type StaticPrompts struct {
	SystemRole string   `yaml:"system_role" json:"system_role"`
	Greeting   string   `yaml:"greeting,omitempty" json:"greeting,omitempty"`
	Speaker    string   `yaml:"speaker,omitempty" json:"speaker,omitempty"`
	Context    []string `yaml:"context,omitempty" json:"context,omitempty"`
}

// LoadStaticPrompts reads a YAML or JSON prompt file.
func LoadStaticPrompts(path string) (*StaticPrompts, error) {
	var p StaticPrompts
	if err := cli.LoadRequest(path, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.SystemRole) == "" {
		return nil, errors.New("prompts: system_role is required")
	}
	return &p, nil
}

func (p *StaticPrompts) Prompt(_ context.Context, _ string) (*Prompt, error) {
	greeting := p.Greeting
	if greeting == "" {
		greeting = DefaultGreeting
	}
	var snippets []string
	for _, s := range p.Context {
		if s = strings.TrimSpace(s); s != "" {
			snippets = append(snippets, s)
		}
	}
	return &Prompt{
		SystemRole: p.SystemRole,
		Greeting:   greeting,
		Context:    snippets,
		Speaker:    p.Speaker,
	}, nil
}
