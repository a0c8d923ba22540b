package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"projectstore/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobStore moves zipped project versions in and out of the project bucket.
type BlobStore interface {
	// FetchProjectZip reads key using the project's temporary credentials.
	FetchProjectZip(ctx context.Context, creds *Credentials, key string) ([]byte, error)
	// UploadZip puts a zip to a presigned URL handed out by the service.
	UploadZip(ctx context.Context, presignedURL string, zip []byte) error
}

// S3BlobStore implements BlobStore on S3 (or R2).
type S3BlobStore struct {
	httpClient *http.Client
	region     string
	endpoint   string
}

// NewS3BlobStore creates a blob store. Credentials come with each call so no
// client is built up front.
func NewS3BlobStore(httpClient *http.Client) *S3BlobStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.CloudAPITimeout}
	}
	return &S3BlobStore{
		httpClient: httpClient,
		region:     config.ProjectBucketRegion,
		endpoint:   config.ProjectBucketEndpoint,
	}
}

func (s *S3BlobStore) client(ctx context.Context, creds *Credentials) (*s3.Client, error) {
	region := creds.Region
	if region == "" {
		region = s.region
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
		)),
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(s.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := creds.Endpoint
	if endpoint == "" {
		endpoint = s.endpoint
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // R2 requires path-style addressing
		}
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}), nil
}

func (s *S3BlobStore) FetchProjectZip(ctx context.Context, creds *Credentials, key string) ([]byte, error) {
	if creds == nil || creds.Bucket == "" {
		return nil, fmt.Errorf("no bucket credentials for %s", key)
	}
	client, err := s.client(ctx, creds)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(creds.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	slog.Debug("Downloaded project zip", "bucket", creds.Bucket, "key", key, "size", len(data))
	return data, nil
}

func (s *S3BlobStore) UploadZip(ctx context.Context, presignedURL string, zip []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, bytes.NewReader(zip))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/zip")
	req.ContentLength = int64(len(zip))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload project zip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload returned status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// ObjectKey returns the bucket key of a project version. An empty version
// points at the latest upload.
func ObjectKey(projectID, version string) string {
	if version == "" {
		return projectID + "/game.zip"
	}
	return projectID + "/versions/" + version + ".zip"
}
