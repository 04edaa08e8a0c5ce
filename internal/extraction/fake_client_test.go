package extraction

import (
	"context"

	"github.com/jonathan/portfolio-pipeline/internal/llm"
)

type fakeClient struct {
	text    string
	json    string
	err     error
	docs    []llm.Document
	prompts []string
	tiers   []llm.ModelTier
}

func (f *fakeClient) GenerateContent(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.tiers = append(f.tiers, tier)
	return f.text, f.err
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.tiers = append(f.tiers, tier)
	return f.json, f.err
}

func (f *fakeClient) GenerateFromDocument(_ context.Context, prompt string, doc llm.Document, tier llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.docs = append(f.docs, doc)
	f.tiers = append(f.tiers, tier)
	return f.text, f.err
}

func (f *fakeClient) GetModel(tier llm.ModelTier) string { return string(tier) }

func (f *fakeClient) Close() error { return nil }
