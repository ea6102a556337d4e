package enum

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// S3Client is the subset of the S3 API the enumerator needs.
type S3Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Enumerator yields the objects stored under a bucket prefix.
type S3Enumerator struct {
	config Config
	client S3Client
	bucket string
	prefix string
}

// NewS3Enumerator creates an enumerator for s3://bucket/prefix. Root in
// config is ignored.
func NewS3Enumerator(config Config, client S3Client, bucket, prefix string) *S3Enumerator {
	return &S3Enumerator{config: config, client: client, bucket: bucket, prefix: prefix}
}

// ParseS3URL splits an s3://bucket/prefix URL.
func ParseS3URL(raw string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", raw)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %s", raw)
	}
	return bucket, prefix, nil
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region   string
	Endpoint string // custom endpoint, e.g. MinIO or LocalStack
}

// NewS3Client builds a client from the default AWS credential chain.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Enumerate lists every object under the prefix and yields its content.
func (e *S3Enumerator) Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(e.bucket)}
	if e.prefix != "" {
		input.Prefix = aws.String(e.prefix)
	}
	paginator := s3.NewListObjectsV2Paginator(e.client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing s3://%s/%s: %w", e.bucket, e.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if !e.config.IncludeHidden && isHidden(path.Base(key)) {
				continue
			}
			if e.config.MaxFileSize > 0 && aws.ToInt64(obj.Size) > e.config.MaxFileSize {
				e.config.logger().Debug("skipping large object", "bucket", e.bucket, "key", key, "size", aws.ToInt64(obj.Size))
				continue
			}
			if err := e.processObject(ctx, key, callback); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *S3Enumerator) processObject(ctx context.Context, key string, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	out, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("getting s3://%s/%s: %w", e.bucket, key, err)
	}
	defer out.Body.Close()

	var r io.Reader = out.Body
	if e.config.MaxFileSize > 0 {
		r = io.LimitReader(out.Body, e.config.MaxFileSize)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading s3://%s/%s: %w", e.bucket, key, err)
	}

	content, ok := e.config.prepare(key, content)
	if !ok {
		return nil
	}
	prov := types.S3Provenance{Bucket: e.bucket, Key: key, ETag: aws.ToString(out.ETag)}
	return callback(content, types.ComputeBlobID(content), prov)
}
