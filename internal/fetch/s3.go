package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"media-viewer-engine/internal/media"
)

// S3Config describes the bucket layout.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// Prefix holds originals; CompressedPrefix holds renditions under the
	// same relative keys.
	Prefix           string
	CompressedPrefix string
}

// objectGetter is the slice of the S3 client the fetcher uses.
type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads by-path references from an S3-compatible bucket. The
// original size hint comes from the "original-size" object metadata or,
// for originals, the object length.
type S3Fetcher struct {
	client           objectGetter
	bucket           string
	prefix           string
	compressedPrefix string
}

// NewS3Fetcher builds a client from static credentials.
func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Fetcher(client, cfg), nil
}

func newS3Fetcher(client objectGetter, cfg S3Config) *S3Fetcher {
	compressed := cfg.CompressedPrefix
	if compressed == "" {
		compressed = path.Join(cfg.Prefix, DefaultCompressedDir)
	}
	return &S3Fetcher{
		client:           client,
		bucket:           strings.TrimSpace(cfg.Bucket),
		prefix:           cfg.Prefix,
		compressedPrefix: compressed,
	}
}

func objectKey(prefix, rel string) string {
	return strings.TrimPrefix(path.Join(prefix, path.Clean("/"+rel)), "/")
}

// Fetch reads the object for ref. A missing compressed rendition falls
// back to the original.
func (f *S3Fetcher) Fetch(ctx context.Context, ref media.Reference) (*Payload, error) {
	if ref.Kind() != media.KindPath {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ref.Kind())
	}

	if ref.EffectiveQuality() == media.QualityCompressed {
		p, err := f.get(ctx, objectKey(f.compressedPrefix, ref.Path), false)
		if !errors.Is(err, ErrNotFound) {
			return p, err
		}
	}
	return f.get(ctx, objectKey(f.prefix, ref.Path), true)
}

func (f *S3Fetcher) get(ctx context.Context, key string, original bool) (*Payload, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, f.bucket, key)
		}
		return nil, fmt.Errorf("get object failed: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read object body: %w", err)
	}

	meta := make(map[string]string)
	if size, ok := out.Metadata["original-size"]; ok {
		meta[media.SizeHintKey] = "originalSize=" + size
	} else if original {
		meta[media.SizeHintKey] = fmt.Sprintf("originalSize=%d", len(data))
	}

	declared := aws.ToString(out.ContentType)

	return &Payload{
		Data:        data,
		ContentType: contentTypeFor(declared, key, data),
		Meta:        meta,
	}, nil
}
