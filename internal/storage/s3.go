// Package storage archives uploads and run reports as JSON objects in an
// S3-compatible bucket (MinIO in development).
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/chainguard-dev/clog"
)

var ErrNotFound = errors.New("object not found")

type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// Enabled reports whether an endpoint was configured at all.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

type Client struct {
	s3     *s3.Client
	bucket string
}

func New(ctx context.Context, c Config) (*Client, error) {
	if !c.Enabled() {
		return nil, errors.New("storage: no endpoint configured")
	}
	if c.Bucket == "" {
		return nil, errors.New("storage: no bucket configured")
	}
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	endpoint := c.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &Client{s3: client, bucket: c.Bucket}, nil
}

// RunReportKey is where the worker archives the summary of run id.
func RunReportKey(runID string) string {
	return fmt.Sprintf("runs/%s.json", runID)
}

// UploadKey addresses an uploaded file by the sha256 of its content, so
// re-uploading the same file overwrites one object.
func UploadKey(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("uploads/%s.json", hex.EncodeToString(sum[:]))
}

// Ref renders the s3:// reference of key in this client's bucket.
func (c *Client) Ref(key string) string {
	return fmt.Sprintf("s3://%s/%s", c.bucket, key)
}

// PutRaw stores already encoded JSON under key.
func (c *Client) PutRaw(ctx context.Context, key string, b []byte) (string, error) {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	ref := c.Ref(key)
	clog.FromContext(ctx).Infof("stored s3 object %s (%d bytes)", ref, len(b))
	return ref, nil
}

func (c *Client) PutJSON(ctx context.Context, key string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return c.PutRaw(ctx, key, b)
}

func parseS3Ref(ref string) (string, string, error) {
	const p = "s3://"
	if !strings.HasPrefix(ref, p) {
		return "", "", fmt.Errorf("bad s3 ref (missing s3://): %q", ref)
	}
	s := strings.TrimPrefix(ref, p)
	slash := strings.IndexByte(s, '/')
	if slash <= 0 || slash == len(s)-1 {
		return "", "", fmt.Errorf("bad s3 ref (need bucket/key): %q", ref)
	}
	return s[:slash], s[slash+1:], nil
}

// GetJSON decodes the object at ref, an s3:// reference or a bare key in
// this client's bucket, into v.
func (c *Client) GetJSON(ctx context.Context, ref string, v any) error {
	log := clog.FromContext(ctx)
	bucket, key := c.bucket, ref
	if strings.HasPrefix(ref, "s3://") {
		var err error
		if bucket, key, err = parseS3Ref(ref); err != nil {
			return err
		}
	}
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		log.Warnf("failed to get s3 object %s: %v", ref, err)
		return err
	}
	defer out.Body.Close()
	if err := json.NewDecoder(out.Body).Decode(v); err != nil {
		log.Warnf("failed to decode s3 object %s: %v", ref, err)
		return err
	}
	return nil
}
