package generators

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/atomic"

	"github.com/VisualStoriesHCA/HCABackend/internal/interfaces"
)

const (
	defaultTextModel  = openai.GPT4o
	defaultImageModel = "gpt-image-1"
	defaultTTSModel   = string(openai.TTSModel1)
	defaultTTSVoice   = string(openai.VoiceAlloy)

	maxRetries = 3
	retryDelay = 1 * time.Second
)

// OpenAIOptions tunes the media client. Zero values fall back to defaults.
type OpenAIOptions struct {
	BaseURL    string
	TextModel  string
	ImageModel string
	TTSModel   string
	TTSVoice   string
}

// OpenAIMediaClient implements the generative media contract on the OpenAI
// API: vision chat for image-to-text, the images endpoint for synthesis and
// the speech endpoint for narration.
type OpenAIMediaClient struct {
	client     *openai.Client
	textModel  string
	imageModel string
	ttsModel   string
	ttsVoice   string

	healthy atomic.Bool // last call outcome, surfaced by the health endpoint
}

// NewOpenAIMediaClient creates a media client for the given API key.
func NewOpenAIMediaClient(apiKey string, opts OpenAIOptions) *OpenAIMediaClient {
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	c := &OpenAIMediaClient{
		client:     openai.NewClientWithConfig(cfg),
		textModel:  orDefault(opts.TextModel, defaultTextModel),
		imageModel: orDefault(opts.ImageModel, defaultImageModel),
		ttsModel:   orDefault(opts.TTSModel, defaultTTSModel),
		ttsVoice:   orDefault(opts.TTSVoice, defaultTTSVoice),
	}
	c.healthy.Store(true)
	return c
}

// Healthy reports whether the last service call succeeded.
func (c *OpenAIMediaClient) Healthy() bool {
	return c.healthy.Load()
}

// ImageToText produces narrative text from an image, minimally diverging
// from priorText when given.
func (c *OpenAIMediaClient) ImageToText(ctx context.Context, img interfaces.ImagePayload, priorText string) (string, error) {
	return c.visionChat(ctx, promptImageToText(priorText), img)
}

// ImageToTitle produces a short story title from an image.
func (c *OpenAIMediaClient) ImageToTitle(ctx context.Context, img interfaces.ImagePayload) (string, error) {
	return c.visionChat(ctx, promptImageToTitle, img)
}

// TextToImage synthesizes a multi-panel schematic image from story text.
func (c *OpenAIMediaClient) TextToImage(ctx context.Context, text string, opts interfaces.StyleOptions) (interfaces.ImagePayload, error) {
	return c.createImage(ctx, promptTextToImage(text, opts.DrawingStyle, opts.ColorProfile))
}

// ImageToImage restyles a single image. The input is first described via
// vision chat, then re-rendered from that brief; gpt-image-1 needs a textual
// brief for a faithful redraw.
func (c *OpenAIMediaClient) ImageToImage(ctx context.Context, img interfaces.ImagePayload, priorText string, opts interfaces.StyleOptions) (interfaces.ImagePayload, error) {
	brief, err := c.visionChat(ctx, promptDescribeForRedraw(priorText), img)
	if err != nil {
		return interfaces.ImagePayload{}, err
	}
	return c.createImage(ctx, promptRenderBrief(brief, opts.DrawingStyle, opts.ColorProfile))
}

// TwoImagesToImage evolves the sequence from the newest sketch and the prior
// version together.
func (c *OpenAIMediaClient) TwoImagesToImage(ctx context.Context, newImage, priorImage interfaces.ImagePayload, contextText string, opts interfaces.StyleOptions) (interfaces.ImagePayload, error) {
	brief, err := c.visionChat(ctx, promptDescribeEvolution(contextText), newImage, priorImage)
	if err != nil {
		return interfaces.ImagePayload{}, err
	}
	return c.createImage(ctx, promptRenderBrief(brief, opts.DrawingStyle, opts.ColorProfile))
}

// TextToSpeech narrates the text with the configured fixed voice.
func (c *OpenAIMediaClient) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	var audio []byte
	err := c.withRetry(ctx, func() error {
		resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model: openai.SpeechModel(c.ttsModel),
			Input: text,
			Voice: openai.SpeechVoice(c.ttsVoice),
		})
		if err != nil {
			return err
		}
		defer resp.Close()
		audio, err = io.ReadAll(resp)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("text to speech: %w", err)
	}
	return audio, nil
}

// visionChat sends one text prompt plus the given images to the chat model
// and returns the reply.
func (c *OpenAIMediaClient) visionChat(ctx context.Context, prompt string, images ...interfaces.ImagePayload) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: dataURI(img),
			},
		})
	}

	var reply string
	err := c.withRetry(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.textModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, MultiContent: parts},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices returned from model")
		}
		reply = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("vision chat: %w", err)
	}
	return reply, nil
}

// createImage renders one image from a prompt and returns the PNG payload.
func (c *OpenAIMediaClient) createImage(ctx context.Context, prompt string) (interfaces.ImagePayload, error) {
	var data []byte
	err := c.withRetry(ctx, func() error {
		resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
			Model:          c.imageModel,
			Prompt:         prompt,
			N:              1,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("no image returned from model")
		}
		data, err = base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
		return err
	})
	if err != nil {
		return interfaces.ImagePayload{}, fmt.Errorf("create image: %w", err)
	}
	return interfaces.ImagePayload{MediaType: "image/png", Data: data}, nil
}

// withRetry runs fn up to maxRetries times with linear backoff, tracking the
// health flag from the final outcome.
func (c *OpenAIMediaClient) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}
		if lastErr = fn(); lastErr == nil {
			c.healthy.Store(true)
			return nil
		}
	}
	c.healthy.Store(false)
	return lastErr
}

func dataURI(img interfaces.ImagePayload) string {
	return "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
