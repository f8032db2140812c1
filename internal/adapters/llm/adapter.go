// Package llm extracts candidate records through an OpenAI compatible chat
// completion endpoint (OpenAI, Groq, or a local Ollama).
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/imaging"
	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
)

type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
	Limits        imaging.Limits
}

type Adapter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	sem     chan struct{}
	limits  imaging.Limits
}

func New(cfg Config) *Adapter {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Adapter{
		client:  openai.NewClientWithConfig(c),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		limits:  cfg.Limits,
	}
}

func (a *Adapter) Extract(ctx context.Context, kind domain.Kind, payload domain.Payload, ref time.Time) (*domain.RawExtraction, error) {
	var mime string
	if payload.IsImage() {
		var err error
		if mime, err = a.limits.Check(payload.Image); err != nil {
			return nil, err
		}
	} else if strings.TrimSpace(payload.Text) == "" {
		return nil, nil
	}

	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionUnavailable, ctx.Err())
	}
	defer func() { <-a.sem }()

	// tie the inference timeout to the incoming ctx
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages(kind, payload, mime, ref),
		// the client drops a zero temperature from the request
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("inference request failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", domain.ErrExtractionUnavailable)
	}

	content := resp.Choices[0].Message.Content
	log.Debug().Str("kind", string(kind)).Str("model", resp.Model).Str("full_response", content).Msg("inference response")

	raw, err := decode(kind, content)
	if err != nil {
		log.Error().Err(err).Str("raw_text", content).Msg("failed to unmarshal extraction JSON")
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionUnavailable, err)
	}
	if raw == nil {
		return nil, nil
	}

	raw.Text = payload.Text
	raw.ReferenceDate = ref
	return raw, nil
}

func messages(kind domain.Kind, payload domain.Payload, mime string, ref time.Time) []openai.ChatCompletionMessage {
	system := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(kind, ref)}

	if !payload.IsImage() {
		return []openai.ChatCompletionMessage{
			system,
			{Role: openai.ChatMessageRoleUser, Content: payload.Text},
		}
	}

	caption := strings.TrimSpace(payload.Text)
	if caption == "" {
		caption = "Analyze this receipt."
	}
	return []openai.ChatCompletionMessage{
		system,
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: caption},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload.Image),
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		},
	}
}

// text accepts JSON strings, numbers and null.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*t = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = text(strings.TrimSpace(v))
	default:
		*t = text(s)
	}
	return nil
}

type response struct {
	Amount       text `json:"amount"`
	Currency     text `json:"currency"`
	Merchant     text `json:"merchant"`
	Category     text `json:"category"`
	Date         text `json:"date"`
	Name         text `json:"name"`
	Type         text `json:"type"`
	TargetAmount text `json:"target_amount"`
	TargetDate   text `json:"target_date"`
	Note         text `json:"note"`
}

// decode parses the model answer. It returns nil when the answer carries no
// amount (expenses) or no name (goals).
func decode(kind domain.Kind, content string) (*domain.RawExtraction, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")

	var r response
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, err
	}

	raw := &domain.RawExtraction{
		Kind:         kind,
		Amount:       string(r.Amount),
		Currency:     string(r.Currency),
		Merchant:     string(r.Merchant),
		Category:     string(r.Category),
		Date:         string(r.Date),
		Name:         string(r.Name),
		TypeHint:     string(r.Type),
		TargetAmount: string(r.TargetAmount),
		TargetDate:   string(r.TargetDate),
		Note:         string(r.Note),
	}

	switch kind {
	case domain.KindGoal:
		if raw.Name == "" {
			return nil, nil
		}
	default:
		if raw.Amount == "" {
			return nil, nil
		}
		if v, err := decimal.NewFromString(raw.Amount); err == nil && v.IsZero() {
			return nil, nil
		}
	}
	return raw, nil
}
