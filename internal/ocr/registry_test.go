package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/scanerr"
	"github.com/docuvault/docscan/pkg/logger"
)

type fakeEngine struct {
	name        string
	initErr     error
	result      *models.OCRResult
	processErr  error
	initialized bool
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Initialize(ctx context.Context) error {
	if e.initErr != nil {
		return e.initErr
	}
	e.initialized = true
	return nil
}

func (e *fakeEngine) IsInitialized() bool { return e.initialized }

func (e *fakeEngine) SupportsLanguage(code string) bool { return true }

func (e *fakeEngine) ProcessImage(ctx context.Context, path string) (*models.OCRResult, error) {
	if e.processErr != nil {
		return nil, e.processErr
	}
	return e.result, nil
}

func TestRegistryToleratesPartialInitFailure(t *testing.T) {
	good := &fakeEngine{name: "good", result: &models.OCRResult{Text: "ok", EngineName: "good"}}
	bad := &fakeEngine{name: "bad", initErr: errors.New("no model data")}

	registry := NewRegistry(logger.NewTestLogger(), good, bad)
	require.NoError(t, registry.Initialize(context.Background()))

	available := registry.Available()
	require.Len(t, available, 1)
	assert.Equal(t, "good", available[0].Name())
}

func TestRegistryAllEnginesFailedInit(t *testing.T) {
	bad := &fakeEngine{name: "bad", initErr: errors.New("boom")}

	registry := NewRegistry(logger.NewTestLogger(), bad)
	err := registry.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, scanerr.KindEngineInitFailure, scanerr.KindOf(err))
}

func TestRunAllCollectsOnlySuccesses(t *testing.T) {
	good := &fakeEngine{name: "good", result: &models.OCRResult{Text: "ok", EngineName: "good"}}
	flaky := &fakeEngine{name: "flaky", processErr: errors.New("decode error")}

	registry := NewRegistry(logger.NewTestLogger(), good, flaky)
	require.NoError(t, registry.Initialize(context.Background()))

	results := registry.RunAll(context.Background(), "/tmp/img.jpg")
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].EngineName)
}

func TestFusionAllEnginesFailed(t *testing.T) {
	flaky := &fakeEngine{name: "flaky", processErr: errors.New("decode error")}

	registry := NewRegistry(logger.NewTestLogger(), flaky)
	require.NoError(t, registry.Initialize(context.Background()))

	fusion := NewFusion(registry, logger.NewTestLogger())
	_, err := fusion.Process(context.Background(), "file:///img.jpg", "/tmp/img.jpg")
	require.Error(t, err)
	assert.Equal(t, scanerr.KindEngineFailure, scanerr.KindOf(err))
}
