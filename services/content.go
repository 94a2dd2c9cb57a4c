package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"go.uber.org/zap"
	googleoption "google.golang.org/api/option"

	"questforge/config"
)

// ContentGenerator produces narrative text, images and audio from prompts.
// Implementations call external providers; tests substitute fakes.
type ContentGenerator interface {
	// GenerateText returns the raw model response for a prompt. Callers parse
	// it with DecodeModelJSON when structured output is expected.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// GenerateImage returns a short-lived URL for a generated image. The URL
	// must be persisted through an AssetStore before it expires.
	GenerateImage(ctx context.Context, prompt string) (string, error)

	// GenerateAudio returns encoded audio (mp3) rendered from the input text.
	GenerateAudio(ctx context.Context, input string, opts AudioOptions) ([]byte, error)
}

// AudioOptions selects the rendering voice for audio generation.
type AudioOptions struct {
	Voice string
	Speed float64
}

const (
	providerTimeout    = 2 * time.Minute
	providerRetryDelay = 5 * time.Second
)

// ProviderGenerator is the production ContentGenerator: Gemini for structured
// text, OpenAI for images and audio. Every call gets one retry before the
// error is surfaced as ErrGenerationProvider.
type ProviderGenerator struct {
	gemini *genai.GenerativeModel
	openai openai.Client
	logger *zap.Logger
}

func NewProviderGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ProviderGenerator, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.GeminiModel)
	model.ResponseMIMEType = "application/json"

	return &ProviderGenerator{
		gemini: model,
		openai: openai.NewClient(openaioption.WithAPIKey(cfg.OpenAIAPIKey)),
		logger: logger,
	}, nil
}

func (g *ProviderGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	var text string
	err := g.withRetry(ctx, "text", func(ctx context.Context) error {
		resp, err := g.gemini.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return err
		}
		text = collectText(resp)
		if text == "" {
			return fmt.Errorf("empty model response")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *ProviderGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	var url string
	err := g.withRetry(ctx, "image", func(ctx context.Context) error {
		resp, err := g.openai.Images.Generate(ctx, openai.ImageGenerateParams{
			Prompt:  prompt,
			Model:   openai.ImageModelDallE3,
			Size:    openai.ImageGenerateParamsSize1024x1024,
			Quality: openai.ImageGenerateParamsQualityStandard,
			N:       openai.Int(1),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 || resp.Data[0].URL == "" {
			return fmt.Errorf("image response carried no url")
		}
		url = resp.Data[0].URL
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (g *ProviderGenerator) GenerateAudio(ctx context.Context, input string, opts AudioOptions) ([]byte, error) {
	var data []byte
	err := g.withRetry(ctx, "audio", func(ctx context.Context) error {
		resp, err := g.openai.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
			Model:          openai.SpeechModelTTS1,
			Input:          input,
			Voice:          speechVoice(opts),
			ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

const defaultSpeechVoice = "onyx"

// speechVoice maps AudioOptions onto the API voice parameter. Voices are
// passed through as raw strings: the endpoint accepts names the SDK's enum
// does not list, the default narrator voice among them.
func speechVoice(opts AudioOptions) openai.AudioSpeechNewParamsVoice {
	if opts.Voice == "" {
		return openai.AudioSpeechNewParamsVoice(defaultSpeechVoice)
	}
	return openai.AudioSpeechNewParamsVoice(opts.Voice)
}

// withRetry runs fn with a per-attempt timeout and retries once after a short
// delay. Context cancellation aborts without retrying.
func (g *ProviderGenerator) withRetry(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying provider call",
				zap.String("kind", kind),
				zap.Error(lastErr))
			select {
			case <-time.After(providerRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		lastErr = fn(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %s generation: %v", ErrGenerationProvider, kind, lastErr)
}

func collectText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

// DecodeModelJSON parses a model response into v. Models occasionally emit
// doubled quotes inside JSON strings; a single pass replacing "" with " is
// attempted before the response is rejected as ErrContentFormat.
func DecodeModelJSON(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	sanitized := strings.ReplaceAll(trimmed, `""`, `"`)
	if err := json.Unmarshal([]byte(sanitized), v); err != nil {
		return fmt.Errorf("%w: %v", ErrContentFormat, err)
	}
	return nil
}
