package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3FlagStore keeps the flag document as a single S3 object.
type S3FlagStore struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3FlagStore loads the default AWS configuration for region. A non-empty
// endpoint switches to path-style addressing for S3-compatible servers.
func NewS3FlagStore(ctx context.Context, bucket, key, region, endpoint string) (*S3FlagStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return NewS3FlagStoreWithClient(s3.NewFromConfig(cfg, opts...), bucket, key), nil
}

// NewS3FlagStoreWithClient uses an existing client.
func NewS3FlagStoreWithClient(client *s3.Client, bucket, key string) *S3FlagStore {
	return &S3FlagStore{client: client, bucket: bucket, key: key}
}

// Load implements FlagStore. A missing object reads as closed.
func (s *S3FlagStore) Load(ctx context.Context) (Flag, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return Flag{}, nil
		}
		return Flag{}, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return Flag{}, fmt.Errorf("s3 read object: %w", err)
	}
	return decodeFlag(raw)
}

// Save implements FlagStore.
func (s *S3FlagStore) Save(ctx context.Context, f Flag) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("s3 encode flag: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
