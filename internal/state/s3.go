package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Store persists state in an S3-compatible bucket under
// state/<environment>.json. Selected with SKIFF_STATE_BACKEND=s3 for
// shared/CI use where a local file store does not survive the runner.
type S3Store struct {
	s3     *s3.Client
	bucket string
}

// S3Config carries the connection settings for an S3-compatible backend.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NewS3Store creates an S3-backed store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{s3: client, bucket: cfg.Bucket}, nil
}

func stateKey(environment string) string {
	return "state/" + environment + ".json"
}

// Load reads the state object. Missing objects return (nil, nil).
func (s *S3Store) Load(ctx context.Context, environment string) (*State, error) {
	result, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(stateKey(environment)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get state for %s: %w", environment, err)
	}
	defer result.Body.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, fmt.Errorf("failed to read state body: %w", err)
	}

	return decodeState(buf.Bytes(), environment)
}

// Save writes the state object.
func (s *S3Store) Save(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(stateKey(st.Environment)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put state for %s: %w", st.Environment, err)
	}
	return nil
}

// Delete removes the state object. Missing objects are success.
func (s *S3Store) Delete(ctx context.Context, environment string) error {
	_, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(stateKey(environment)),
	})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("failed to delete state for %s: %w", environment, err)
	}
	return nil
}

// isNoSuchKey checks for a missing object, falling back to API error
// codes for S3-compatible services that do not return the SDK types.
func isNoSuchKey(err error) bool {
	if err == nil {
		return false
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return false
}
