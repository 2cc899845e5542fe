package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
)

var _ adapter.Provider = (*OpenAIScriptProvider)(nil)

const scriptSystemPrompt = "You are a video script writer. Produce a tight narration script " +
	"for the requested topic. Plain prose, no markdown, no scene numbers."

// OpenAIScriptProvider generates narration scripts through the Chat
// Completions streaming API. Each streamed chunk counts as a heartbeat, so
// the stall monitor sees liveness for as long as tokens keep arriving.
type OpenAIScriptProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIScriptProvider(apiKey, model string) (*OpenAIScriptProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIScriptProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (o *OpenAIScriptProvider) ID() string                    { return "openai-script" }
func (o *OpenAIScriptProvider) Category() model.StageCategory { return model.CategoryScript }

func (o *OpenAIScriptProvider) Invoke(ctx context.Context, req adapter.Request, beat adapter.Heartbeat) (*model.StageResult, error) {
	prompt := req.Inputs["topic"]
	if prompt == "" {
		prompt = req.Inputs["prompt"]
	}
	if prompt == "" {
		return nil, domain.Fatal(errors.New("openai-script: no topic or prompt input"))
	}

	// Rough completion-size guess from the prompt: scripts run a few times
	// the topic length. Only used to shape the heartbeat progress curve.
	expected := promptTokens(o.model, prompt) * 8
	if expected < 200 {
		expected = 200
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(scriptSystemPrompt),
			openai.UserMessage(prompt),
		},
	})

	var (
		sb     strings.Builder
		chunks int
	)
	for stream.Next() {
		chunk := stream.Current()
		chunks++
		for _, c := range chunk.Choices {
			sb.WriteString(c.Delta.Content)
		}
		if beat != nil {
			p := float64(chunks) / float64(expected)
			if p > 0.99 {
				p = 0.99
			}
			beat(p)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, classifyOpenAIErr(err)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, domain.Transient(errors.New("openai-script: empty completion"))
	}
	if beat != nil {
		beat(1)
	}

	return &model.StageResult{
		Ref:        fmt.Sprintf("script://%s", req.Fingerprint()[:16]),
		Detail:     text,
		ProviderID: o.ID(),
		Tokens:     promptTokens(o.model, text),
	}, nil
}

// promptTokens counts tokens with the model's encoding, falling back to the
// cl100k_base tokenizer for models tiktoken does not know.
func promptTokens(modelName, text string) int {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return len(text) / 4
		}
	}
	return len(enc.Encode(text, nil, nil))
}

func classifyOpenAIErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if transientStatus(apiErr.StatusCode) {
			return domain.Transient(fmt.Errorf("openai: %w", err))
		}
		return domain.Fatal(fmt.Errorf("openai: %w", err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Transient(err)
	}
	// Network-level failures without a status code are worth retrying.
	return domain.Transient(fmt.Errorf("openai: %w", err))
}

func transientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
