package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

type recordingProcessor struct {
	mu       sync.Mutex
	requests map[string]pipeline.Request
	fail     map[string]bool
}

func (p *recordingProcessor) Process(_ context.Context, req pipeline.Request) *pipeline.Result {
	p.mu.Lock()
	if p.requests == nil {
		p.requests = make(map[string]pipeline.Request)
	}
	p.requests[req.Filename] = req
	p.mu.Unlock()

	if req.Progress != nil {
		req.Progress.OnEvent(pipeline.Progress{Stage: pipeline.StageValidation, Percent: 5, Message: "Validating file"})
	}

	if p.fail[req.Filename] {
		return &pipeline.Result{ErrorCode: "EMPTY_FILE", Error: "File is empty"}
	}
	return &pipeline.Result{
		Success:      true,
		SubmissionID: "sub-" + req.Filename,
		Profile:      &types.CandidateProfile{ID: "p", Name: "Grace Hopper", Category: types.CategoryTechnical},
		Components: []types.ComponentConfig{
			{Type: types.ComponentHeroTerminal, Order: 0, Theme: "neon_blue"},
		},
		Theme:    types.ThemeNeonBlue,
		Warnings: []string{},
	}
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(paths[i], []byte("Grace Hopper\nRear Admiral, computer scientist\n"), 0o644))
	}
	return paths
}

func TestProcessFiles_SingleFilePrintsProgress(t *testing.T) {
	proc := &recordingProcessor{}
	files := writeFiles(t, "resume.txt")
	var out bytes.Buffer

	err := processFiles(context.Background(), proc, files, batchOptions{
		Concurrency: 2,
		Options:     map[string]any{types.OptionThemePreference: "cyber_pink"},
		ClientID:    "cli",
	}, &out)
	require.NoError(t, err)

	req := proc.requests["resume.txt"]
	assert.Equal(t, "cli", req.ClientID)
	assert.Equal(t, "cyber_pink", req.Options[types.OptionThemePreference])
	assert.Contains(t, req.ContentType, "text/plain")
	assert.NotNil(t, req.Progress)

	assert.Contains(t, out.String(), "Validating file")
	assert.Contains(t, out.String(), "COMPLETED: ")
	assert.Contains(t, out.String(), "Grace Hopper")
}

func TestProcessFiles_JSONKeepsInputOrder(t *testing.T) {
	proc := &recordingProcessor{}
	files := writeFiles(t, "a.txt", "b.txt", "c.txt")
	var out bytes.Buffer

	err := processFiles(context.Background(), proc, files, batchOptions{Concurrency: 3, JSON: true}, &out)
	require.NoError(t, err)

	var results []struct {
		File   string `json:"file"`
		Result struct {
			Success      bool   `json:"success"`
			SubmissionID string `json:"submission_id"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 3)
	for i, fr := range results {
		assert.Equal(t, files[i], fr.File)
		assert.True(t, fr.Result.Success)
		assert.Equal(t, "sub-"+filepath.Base(files[i]), fr.Result.SubmissionID)
	}

	for _, req := range proc.requests {
		assert.Nil(t, req.Progress, "progress is only printed for single-file runs")
	}
}

func TestProcessFiles_ReportsFailures(t *testing.T) {
	proc := &recordingProcessor{fail: map[string]bool{"bad.txt": true}}
	files := writeFiles(t, "good.txt", "bad.txt")
	var out bytes.Buffer

	err := processFiles(context.Background(), proc, files, batchOptions{Concurrency: 1}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	assert.Contains(t, out.String(), "FAILED: ")
	assert.Contains(t, out.String(), "EMPTY_FILE")
}

func TestProcessFiles_MissingFile(t *testing.T) {
	proc := &recordingProcessor{}
	err := processFiles(context.Background(), proc, []string{filepath.Join(t.TempDir(), "missing.pdf")}, batchOptions{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}
