package provider

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mantled-app/creator-api/internal/config"
	"github.com/mantled-app/creator-api/internal/generation"
)

const textSystemPrompt = "You are a content assistant for a mobile creator app. " +
	"Produce polished, ready-to-post content. Respond with the content only, no preamble."

func openaiOptions(cfg config.OpenAIConfig) []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts
}

// OpenAIText generates written content via chat completions. The artifact
// handle for text is the content itself.
type OpenAIText struct {
	model      string
	opts       []option.RequestOption
	configured bool
	priority   int
}

func NewOpenAIText(cfg config.OpenAIConfig, priority int) *OpenAIText {
	return &OpenAIText{
		model:      cfg.TextModel,
		opts:       openaiOptions(cfg),
		configured: cfg.Configured(),
		priority:   priority,
	}
}

func (p *OpenAIText) Descriptor() generation.Descriptor {
	return generation.Descriptor{
		ID:              "openai-text",
		Capability:      generation.CapabilityText,
		Priority:        p.priority,
		Configured:      p.configured,
		ApproxCostUnits: 1,
	}
}

func (p *OpenAIText) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	client := openai.NewClient(p.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(textSystemPrompt),
			openai.UserMessage(req.Prompt),
		},
	})
	if err != nil {
		return generation.Result{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return generation.Result{}, errors.New("openai: empty choices")
	}

	return generation.Result{
		ArtifactRef: resp.Choices[0].Message.Content,
		Model:       p.model,
		CostUnits:   1,
	}, nil
}

// OpenAIImage generates images and returns the hosted artifact URL.
type OpenAIImage struct {
	model      string
	opts       []option.RequestOption
	configured bool
	priority   int
}

func NewOpenAIImage(cfg config.OpenAIConfig, priority int) *OpenAIImage {
	return &OpenAIImage{
		model:      cfg.ImageModel,
		opts:       openaiOptions(cfg),
		configured: cfg.Configured(),
		priority:   priority,
	}
}

func (p *OpenAIImage) Descriptor() generation.Descriptor {
	return generation.Descriptor{
		ID:              "openai-image",
		Capability:      generation.CapabilityImage,
		Priority:        p.priority,
		Configured:      p.configured,
		ApproxCostUnits: 4,
	}
}

func (p *OpenAIImage) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	client := openai.NewClient(p.opts...)

	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(p.model),
		N:      openai.Int(1),
		Size:   imageSize(req.Style),
	})
	if err != nil {
		return generation.Result{}, fmt.Errorf("openai image generation: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return generation.Result{}, errors.New("openai: empty image response")
	}

	return generation.Result{
		ArtifactRef: resp.Data[0].URL,
		Model:       p.model,
		CostUnits:   4,
	}, nil
}

func imageSize(s generation.StyleOptions) openai.ImageGenerateParamsSize {
	switch {
	case s.Width > s.Height:
		return openai.ImageGenerateParamsSize1792x1024
	case s.Height > s.Width:
		return openai.ImageGenerateParamsSize1024x1792
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}
