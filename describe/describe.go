// Package describe turns images and prompts into text through the
// configured vision model. Failures never reach the caller: they are logged
// and replaced with fixed fallback messages.
package describe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/brunobiangulo/docbot/imaging"
	"github.com/brunobiangulo/docbot/llm"
)

const (
	// ImageFallback replaces a failed image description.
	ImageFallback = "I couldn't process the image. Please try again later."
	// TextFallback replaces a failed text completion.
	TextFallback = "I'm having trouble processing your request right now. Please try again later."

	imagePrompt = "Analyze this image and describe its contents:"
)

// ErrDescribe is returned by the error-returning variants when the model
// call fails or produces nothing.
var ErrDescribe = errors.New("describe: model produced no description")

// Config controls model usage.
type Config struct {
	// RatePerMinute caps outbound model calls. Zero disables the limit.
	RatePerMinute int `json:"rate_per_minute" yaml:"rate_per_minute"`
	MaxTokens     int `json:"max_tokens" yaml:"max_tokens"`
}

// Describer describes images and answers prompts.
type Describer struct {
	provider   llm.VisionProvider
	normalizer *imaging.Normalizer
	limiter    *rate.Limiter
	maxTokens  int
}

// New creates a Describer. normalizer may be nil for the defaults.
func New(provider llm.VisionProvider, normalizer *imaging.Normalizer, cfg Config) *Describer {
	if normalizer == nil {
		normalizer = imaging.NewNormalizer(imaging.Config{})
	}
	d := &Describer{
		provider:   provider,
		normalizer: normalizer,
		maxTokens:  cfg.MaxTokens,
	}
	if cfg.RatePerMinute > 0 {
		d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}
	return d
}

// DescribeImage returns the model's description of img, or ImageFallback.
func (d *Describer) DescribeImage(ctx context.Context, img *imaging.NormalizedImage) string {
	text, err := d.TryDescribeImage(ctx, img)
	if err != nil {
		slog.Warn("describe: image description failed", "error", err)
		return ImageFallback
	}
	return text
}

// DescribeText returns the model's reply to prompt, or TextFallback.
func (d *Describer) DescribeText(ctx context.Context, prompt string) string {
	text, err := d.TryDescribeText(ctx, prompt)
	if err != nil {
		slog.Warn("describe: text completion failed", "error", err)
		return TextFallback
	}
	return text
}

// AnalyzeImage normalizes raw image bytes and describes them. Undecodable
// input yields ImageFallback.
func (d *Describer) AnalyzeImage(ctx context.Context, raw []byte) string {
	img, err := d.normalizer.Normalize(raw)
	if err != nil {
		slog.Warn("describe: image normalization failed", "bytes", len(raw), "error", err)
		return ImageFallback
	}
	return d.DescribeImage(ctx, img)
}

// TryDescribeImage is DescribeImage without the fallback.
func (d *Describer) TryDescribeImage(ctx context.Context, img *imaging.NormalizedImage) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrDescribe)
	}
	if err := d.wait(ctx); err != nil {
		return "", err
	}

	resp, err := d.provider.ChatWithImages(ctx, llm.VisionChatRequest{
		Messages: []llm.VisionMessage{{
			Role: "user",
			Content: []llm.ContentPart{
				llm.TextPart(imagePrompt),
				llm.ImagePart(img.DataURL()),
			},
		}},
		MaxTokens: d.maxTokens,
	})
	return d.content(resp, err)
}

// TryDescribeText is DescribeText without the fallback.
func (d *Describer) TryDescribeText(ctx context.Context, prompt string) (string, error) {
	if err := d.wait(ctx); err != nil {
		return "", err
	}
	resp, err := d.provider.Chat(ctx, llm.ChatRequest{
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: d.maxTokens,
	})
	return d.content(resp, err)
}

func (d *Describer) wait(ctx context.Context) error {
	if d.limiter == nil {
		return nil
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrDescribe, err)
	}
	return nil
}

func (d *Describer) content(resp *llm.ChatResponse, err error) (string, error) {
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDescribe, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: empty response", ErrDescribe)
	}
	return resp.Content, nil
}
