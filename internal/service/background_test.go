package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/blob"
)

const testBase = "https://cdn.example.com/poems"

func TestBackgroundUpload(t *testing.T) {
	store := blob.NewMemory(testBase)
	svc := NewBackgroundService(store, testLogger())

	body := []byte("fake jpeg bytes")
	url, err := svc.Upload(context.Background(), "Sunset.JPG", int64(len(body)), bytes.NewReader(body))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, testBase+"/"+blob.BackgroundPrefix), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"), "extension is lowercased: %s", url)

	urls, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{url}, urls)
}

func TestBackgroundUpload_Rejections(t *testing.T) {
	svc := NewBackgroundService(blob.NewMemory(testBase), testLogger())

	tests := []struct {
		name     string
		filename string
		size     int64
	}{
		{"empty", "a.png", 0},
		{"too large", "a.png", blob.MaxUploadSize + 1},
		{"not an image", "notes.txt", 10},
		{"no extension", "README", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.filename, tt.size, strings.NewReader("x"))
			assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
		})
	}
}

func TestBackgroundService_Unconfigured(t *testing.T) {
	svc := NewBackgroundService(nil, testLogger())

	_, err := svc.List(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))

	_, err = svc.Upload(context.Background(), "a.png", 3, strings.NewReader("abc"))
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))

	// Size is still checked first.
	_, err = svc.Upload(context.Background(), "a.png", blob.MaxUploadSize+1, strings.NewReader(""))
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestBackgroundList_EmptyIsNotNil(t *testing.T) {
	svc := NewBackgroundService(blob.NewMemory(testBase), testLogger())

	urls, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, urls)
	assert.Empty(t, urls)
}

func TestBackgroundDelete(t *testing.T) {
	svc := NewBackgroundService(blob.NewMemory(testBase), testLogger())

	url, err := svc.Upload(context.Background(), "a.png", 3, strings.NewReader("abc"))
	require.NoError(t, err)

	assert.True(t, errors.Is(svc.Delete(context.Background(), "https://elsewhere.test/a.png"), apperror.ErrValidation))

	require.NoError(t, svc.Delete(context.Background(), url))
	urls, _ := svc.List(context.Background())
	assert.Empty(t, urls)
}
