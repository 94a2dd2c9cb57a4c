package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"questforge/config"
)

// AssetStore persists generated assets under stable public URLs. Provider
// image URLs expire quickly, so everything is copied into the store before
// its URL is written to the database.
type AssetStore interface {
	UploadBytes(ctx context.Context, data []byte, contentType, prefix string) (string, error)
	UploadFromURL(ctx context.Context, srcURL, prefix string) (string, error)
}

type S3AssetStore struct {
	client *s3.Client
	bucket string
	region string
	httpc  *http.Client
	logger *zap.Logger
}

func NewS3AssetStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*S3AssetStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	return &S3AssetStore{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		region: cfg.S3Region,
		httpc:  &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}, nil
}

func (s *S3AssetStore) UploadBytes(ctx context.Context, data []byte, contentType, prefix string) (string, error) {
	key := fmt.Sprintf("%s/%s%s", strings.Trim(prefix, "/"), uuid.NewString(), extensionFor(contentType))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	s.logger.Debug("asset uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return url, nil
}

func (s *S3AssetStore) UploadFromURL(ctx context.Context, srcURL, prefix string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build asset request: %w", err)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download asset: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read asset body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFor(srcURL)
	}
	return s.UploadBytes(ctx, data, contentType, prefix)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ""
	}
}

func contentTypeFor(srcURL string) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(srcURL, "?", 2)[0]))
	switch ext {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
