// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/olegiv/shopsync-go/internal/model"
)

// OpenAIProvider translates product content through the OpenAI chat API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a provider using the given API key and model.
func NewOpenAIProvider(apiKey, chatModel string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  chatModel,
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai/" + p.model }

// TranslateBatch implements Provider. Items are translated one request at a
// time; product descriptions can be long and mixing products in one prompt
// degrades quality.
func (p *OpenAIProvider) TranslateBatch(ctx context.Context, items []Item) ([]string, error) {
	results := make([]string, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			results[i] = ""
			continue
		}
		translated, err := p.translateOne(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("translating %s %s->%s: %w", item.Field, item.SourceLang, item.TargetLang, err)
		}
		results[i] = translated
	}
	return results, nil
}

func (p *OpenAIProvider) translateOne(ctx context.Context, item Item) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(item)),
			openai.UserMessage(item.Text),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func systemPrompt(item Item) string {
	var sb strings.Builder
	sb.WriteString("You are a professional translator for an e-commerce catalog. Translate the ")
	sb.WriteString(fieldDescription(item.Field))
	sb.WriteString(" from ")
	sb.WriteString(languageName(item.SourceLang))
	sb.WriteString(" to ")
	sb.WriteString(languageName(item.TargetLang))
	sb.WriteString(". Preserve any HTML markup exactly. Keep brand names, SKUs and measurements unchanged. Respond with the translation only, no explanations.")
	return sb.String()
}

func fieldDescription(field model.ContentField) string {
	switch field {
	case model.FieldTitle:
		return "product title"
	case model.FieldFulltitle:
		return "full product title"
	case model.FieldDescription:
		return "short product description"
	case model.FieldContent:
		return "product page content"
	default:
		return "product text"
	}
}

// languageName spells out a language code for the prompt. Model output is
// noticeably better with "Dutch" than with "nl".
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}
