// Package vision describes images and image-only documents through the
// Gemini API. Failures surface as warnings on the produced node, never as
// batch errors.
package vision

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Describer is the vision/OCR collaborator contract.
type Describer interface {
	Describe(ctx context.Context, imageBytes []byte, mimeType, instruction string) (string, error)
}

const defaultModel = "gemini-2.0-flash"

// GeminiDescriber implements Describer over google.golang.org/genai.
type GeminiDescriber struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewGeminiDescriber connects to the Gemini API.
func NewGeminiDescriber(ctx context.Context, apiKey, model string, logger *logrus.Logger) (*GeminiDescriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = logrus.New()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiDescriber{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		logger:  logger,
	}, nil
}

// Describe sends image bytes plus an instruction and returns the textual
// description.
func (d *GeminiDescriber) Describe(ctx context.Context, imageBytes []byte, mimeType, instruction string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(imageBytes, mimeType),
			genai.NewPartFromText(instruction),
		}, genai.RoleUser),
	}

	resp, err := d.client.Models.GenerateContent(ctx, d.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}

	d.logger.WithFields(logrus.Fields{
		"model": d.model,
		"bytes": len(imageBytes),
	}).Debug("vision description generated")
	return text, nil
}
