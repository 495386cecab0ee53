package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

var errStorageDisabled = errors.New("media storage backend is not configured; set SPACES_* to enable archival")

// SpacesStorage archives message attachments in S3-compatible object
// storage (DigitalOcean Spaces). Objects are public-read so the CRM can
// render them directly.
type SpacesStorage struct {
	bucket    string
	endpoint  string
	keyPrefix string
	client    *s3.Client
	log       zerolog.Logger
	disabled  bool
}

// Config carries the object storage connection settings.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	KeyPrefix string
}

func NewSpacesStorage(ctx context.Context, cfg Config, log zerolog.Logger) (*SpacesStorage, error) {
	logger := log.With().Str("component", "spaces-storage").Logger()
	storage := &SpacesStorage{
		bucket:    strings.TrimSpace(cfg.Bucket),
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
		log:       logger,
	}

	accessKey := strings.TrimSpace(cfg.AccessKey)
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if storage.bucket == "" || accessKey == "" || secretKey == "" {
		logger.Warn().Msg("SPACES_BUCKET or credentials are not set; media archival will be disabled until configured")
		storage.disabled = true
		return storage, nil
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:           cfg.Endpoint,
				PartitionID:   "aws",
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	storage.client = s3.NewFromConfig(awsCfg)
	return storage, nil
}

// Upload stores the object and returns its public URL.
func (s *SpacesStorage) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if s.disabled {
		return "", errStorageDisabled
	}
	if s.keyPrefix != "" {
		key = s.keyPrefix + "/" + key
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", err
	}
	return s.publicURL(key), nil
}

func (s *SpacesStorage) publicURL(key string) string {
	if s.endpoint == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	}
	scheme, host, found := strings.Cut(s.endpoint, "://")
	if !found {
		return fmt.Sprintf("https://%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("%s://%s.%s/%s", scheme, s.bucket, host, key)
}
