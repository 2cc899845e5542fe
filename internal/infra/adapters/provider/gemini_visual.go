package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
)

var _ adapter.Provider = (*GeminiVisualProvider)(nil)

const storyboardPrompt = "Turn the following narration script into a storyboard: one line per shot, " +
	"each line a concrete visual description suitable for an image generator.\n\n"

// GeminiVisualProvider produces the visual plan for a job through the Gemini
// API. The response is streamed and every received chunk is a heartbeat.
type GeminiVisualProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiVisualProvider(ctx context.Context, apiKey, baseURL, modelName string) (*GeminiVisualProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiVisualProvider{client: c, model: modelName}, nil
}

func (g *GeminiVisualProvider) ID() string                    { return "gemini-visual" }
func (g *GeminiVisualProvider) Category() model.StageCategory { return model.CategoryVisual }

func (g *GeminiVisualProvider) Invoke(ctx context.Context, req adapter.Request, beat adapter.Heartbeat) (*model.StageResult, error) {
	script := req.Inputs["ref:script"]
	if script == "" {
		script = req.Inputs["prompt"]
	}
	if script == "" {
		return nil, domain.Fatal(errors.New("gemini-visual: no script or prompt input"))
	}

	var (
		sb     strings.Builder
		chunks int
	)
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(storyboardPrompt+script), nil) {
		if err != nil {
			return nil, classifyGeminiErr(err)
		}
		chunks++
		sb.WriteString(resp.Text())
		if beat != nil {
			p := float64(chunks) / float64(chunks+10)
			beat(p)
		}
	}
	board := sb.String()
	if strings.TrimSpace(board) == "" {
		return nil, domain.Transient(errors.New("gemini-visual: empty response"))
	}
	if beat != nil {
		beat(1)
	}

	return &model.StageResult{
		Ref:        fmt.Sprintf("storyboard://%s", req.Fingerprint()[:16]),
		Detail:     board,
		ProviderID: g.ID(),
	}, nil
}

func classifyGeminiErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if transientStatus(apiErr.Code) {
			return domain.Transient(fmt.Errorf("gemini: %w", err))
		}
		return domain.Fatal(fmt.Errorf("gemini: %w", err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Transient(err)
	}
	return domain.Transient(fmt.Errorf("gemini: %w", err))
}
