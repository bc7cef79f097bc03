package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/contracts"
)

// Request is what an agent sees of one bot turn.
type Request struct {
	Bot           contracts.BotRequest
	Config        configdoc.OrchestratorConfig
	ConfigVersion string
	// History is the trimmed message list; the newest message is last.
	History []contracts.Message
}

// LastUserUtterance returns the content of the newest user message.
func (r Request) LastUserUtterance() string {
	for i := len(r.History) - 1; i >= 0; i-- {
		if role, _ := r.History[i]["role"].(string); role == string(contracts.RoleUser) {
			content, _ := r.History[i]["content"].(string)
			return strings.TrimSpace(content)
		}
	}
	return ""
}

// earlierUserUtterances returns older user messages, newest first.
func (r Request) earlierUserUtterances() []string {
	var out []string
	skipped := false
	for i := len(r.History) - 1; i >= 0; i-- {
		if role, _ := r.History[i]["role"].(string); role != string(contracts.RoleUser) {
			continue
		}
		if !skipped {
			skipped = true
			continue
		}
		if content, _ := r.History[i]["content"].(string); strings.TrimSpace(content) != "" {
			out = append(out, strings.TrimSpace(content))
		}
	}
	return out
}

// Result is one agent's contribution to the answer.
type Result struct {
	Answer     string
	DataPoints []string
	Steps      map[string]any
}

// Agent handles one part of a bot turn.
type Agent interface {
	Name() string
	Run(ctx context.Context, req Request) (Result, error)
}

// Plan turns a request into an answer.
type Plan interface {
	Execute(ctx context.Context, req Request) (*contracts.Answer, error)
}

// SequentialPlan runs the agents enabled by the config in config order and
// concatenates their results. The first agent error aborts the plan.
type SequentialPlan struct {
	agents map[string]Agent
}

// NewSequentialPlan registers agents by name.
func NewSequentialPlan(agents ...Agent) *SequentialPlan {
	p := &SequentialPlan{agents: map[string]Agent{}}
	for _, a := range agents {
		p.agents[a.Name()] = a
	}
	return p
}

// Execute implements Plan.
func (p *SequentialPlan) Execute(ctx context.Context, req Request) (*contracts.Answer, error) {
	answer := &contracts.Answer{
		DataPoints: []string{},
		StepsExecution: map[string]any{
			"bot_name":       req.Config.BotName,
			"config_version": req.ConfigVersion,
			"history_turns":  len(req.History),
		},
		SpeakerLocale: req.Bot.Locale,
	}
	var parts []string
	for _, name := range req.Config.Agents {
		agent, ok := p.agents[name]
		if !ok {
			return nil, apperr.New(apperr.KindInternal, "agent %q is not available", name)
		}
		res, err := agent.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		if res.Answer != "" {
			parts = append(parts, res.Answer)
		}
		answer.DataPoints = append(answer.DataPoints, res.DataPoints...)
		if res.Steps != nil {
			answer.StepsExecution[name] = res.Steps
		}
	}
	answer.AnswerString = strings.Join(parts, "\n")
	if answer.AnswerString == "" {
		answer.AnswerString = fmt.Sprintf("%s has no answer for that.", req.Config.BotName)
	}
	answer.SpeakAnswer = answer.AnswerString
	return answer, nil
}

// EchoAgent restates the newest user utterance.
type EchoAgent struct{}

// Name implements Agent.
func (EchoAgent) Name() string { return configdoc.AgentEcho }

// Run implements Agent. A prompt named "echo" replaces the default prefix.
func (EchoAgent) Run(_ context.Context, req Request) (Result, error) {
	prefix := "You said: "
	if p, ok := req.Config.Prompts[configdoc.AgentEcho]; ok {
		prefix = p
	}
	utterance := req.LastUserUtterance()
	if utterance == "" {
		return Result{}, nil
	}
	return Result{Answer: prefix + utterance}, nil
}
