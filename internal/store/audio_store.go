package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"

	"responsa/internal/config"
)

// AudioStore persists the voice note files referenced by entries. Objects
// are keyed by the entry's AudioRef.
type AudioStore struct {
	client *minio.Client
	bucket string
}

// NewAudioStore creates the store over the configured bucket.
func NewAudioStore(client *minio.Client, cfg *config.MinIOConfig) *AudioStore {
	return &AudioStore{client: client, bucket: cfg.Bucket}
}

// Put uploads one voice note. The content type is detected from the bytes so
// browsers can stream the audio directly.
func (s *AudioStore) Put(ctx context.Context, ref string, data []byte) error {
	contentType := mimetype.Detect(data).String()

	_, err := s.client.PutObject(ctx, s.bucket, ref, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to store audio '%s': %w", ref, err)
	}
	return nil
}

// Fetch downloads one voice note.
func (s *AudioStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio '%s': %w", ref, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio '%s': %w", ref, err)
	}
	return data, nil
}

// PresignedURL returns a temporary download link for one voice note.
func (s *AudioStore) PresignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign audio '%s': %w", ref, err)
	}
	return u.String(), nil
}
