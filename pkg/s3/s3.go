// Package s3 stores objects in S3-compatible services such as MinIO or SeaweedFS.
package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var errNilClient = errors.New("nil client")

// Options configure a Client.
type Options struct {
	// Endpoint is host:port or a full URL.
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	DisableTLS     bool
	ForcePathStyle bool
}

func (o Options) endpoint() (string, error) {
	endpoint := strings.TrimSpace(o.Endpoint)
	if endpoint == "" {
		return "", errors.New("S3_ENDPOINT is required")
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint, nil
	}
	scheme := "https"
	if o.DisableTLS {
		scheme = "http"
	}
	return scheme + "://" + endpoint, nil
}

// Object is an in-memory object to upload.
type Object struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// Client wraps the S3 API and presign clients.
type Client struct {
	api     *s3.Client
	presign *s3.PresignClient
}

// NewClient initialises a Client with static credentials. Requests are traced.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	endpoint, err := opts.endpoint()
	if err != nil {
		return nil, err
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	)
	if err != nil {
		return nil, err
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.ForcePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &Client{api: api, presign: s3.NewPresignClient(api)}, nil
}

// EnsureBucket creates bucket unless it already exists.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	if c == nil {
		return errNilClient
	}
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var notFound *s3types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("head bucket %s: %w", bucket, err)
	}

	if _, err := c.api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// Put uploads obj with a SHA-256 checksum the server verifies.
func (c *Client) Put(ctx context.Context, obj Object) error {
	if c == nil {
		return errNilClient
	}
	if _, err := c.api.PutObject(ctx, putInput(obj)); err != nil {
		return fmt.Errorf("put %s/%s: %w", obj.Bucket, obj.Key, err)
	}
	return nil
}

func putInput(obj Object) *s3.PutObjectInput {
	sum := sha256.Sum256(obj.Body)
	meta := maps.Clone(obj.Metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta["sha256"] = hex.EncodeToString(sum[:])

	in := &s3.PutObjectInput{
		Bucket:            aws.String(obj.Bucket),
		Key:               aws.String(obj.Key),
		Body:              bytes.NewReader(obj.Body),
		ContentLength:     aws.Int64(int64(len(obj.Body))),
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    aws.String(base64.StdEncoding.EncodeToString(sum[:])),
		Metadata:          meta,
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	return in
}

// PutJSON encodes v and uploads it as application/json.
func (c *Client) PutJSON(ctx context.Context, bucket, key string, v any, meta map[string]string) error {
	if c == nil {
		return errNilClient
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Put(ctx, Object{
		Bucket:      bucket,
		Key:         key,
		Body:        data,
		ContentType: "application/json",
		Metadata:    meta,
	})
}

// PresignGet returns a download URL for key valid for ttl. The response is
// served as an attachment named after the key's last element.
func (c *Client) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if c == nil {
		return "", errNilClient
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(key))),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}
