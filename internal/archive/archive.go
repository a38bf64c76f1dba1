package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Uploader stores run snapshots in an S3-compatible bucket. The engine keeps
// no persistent state of its own; snapshots exist only for auditing what a
// given run wrote.
type Uploader struct {
	logger zerolog.Logger
	client *s3.Client
	bucket string
}

func NewUploader(logger zerolog.Logger, endpoint, bucket, accessKey, secretKey string) *Uploader {
	opts := s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return &Uploader{
		logger: logger.With().Str("component", "archive").Logger(),
		client: s3.New(opts),
		bucket: bucket,
	}
}

// StoreSnapshot uploads the snapshot as JSON under runs/<day>/<run-id>.json
// and returns the object key.
func (u *Uploader) StoreSnapshot(ctx context.Context, runID string, at time.Time, snapshot any) (string, error) {
	key := fmt.Sprintf("runs/%s/%s.json", at.Format("2006-01-02"), runID)

	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", key, err)
	}
	u.logger.Info().Str("key", key).Int("bytes", len(body)).Msg("stored run snapshot")
	return key, nil
}
