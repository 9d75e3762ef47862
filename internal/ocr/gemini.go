package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcribePrompt asks the vision model for a verbatim transcription.
// The heuristic parser downstream expects raw line-oriented text, so the
// model must not summarise or reformat.
const transcribePrompt = `Transcribe ALL text visible in this receipt or delivery note image, line by line, exactly as written. Preserve the original line breaks, numbers, dates and amounts. Do not translate, summarise, reorder or annotate anything. Return plain text only, no markdown.`

// Gemini implements Engine using the Google Gemini vision API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

func (g *Gemini) RecognizeImage(ctx context.Context, png []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData("png", png),
		genai.Text(transcribePrompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating transcription: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no transcription returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}
