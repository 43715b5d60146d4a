package catalog

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/neuronote/pkg/manifest"
	"github.com/platinummonkey/neuronote/pkg/observability"
)

// ObjectGetter is the subset of the S3 client used by S3Source
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Config configures an S3Source
type S3Config struct {
	Bucket       string
	Key          string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	// RefreshInterval bounds how often the object is fetched again
	RefreshInterval time.Duration
}

// S3Source reads a manifest object from S3 or an S3 compatible store
type S3Source struct {
	client   ObjectGetter
	bucket   string
	key      string
	format   manifest.Format
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	records   []manifest.PluginRecord
	loaded    bool
	etag      string
	fetchedAt time.Time
}

// NewS3Source builds an AWS client from cfg and returns a source reading cfg.Key
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	var (
		awsConfig aws.Config
		err       error
	)

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// static credentials for MinIO or explicit keys
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return NewS3SourceWithClient(client, cfg), nil
}

// NewS3SourceWithClient uses an existing client
func NewS3SourceWithClient(client ObjectGetter, cfg S3Config) *S3Source {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &S3Source{
		client:   client,
		bucket:   cfg.Bucket,
		key:      cfg.Key,
		format:   manifest.FormatFromPath(cfg.Key),
		interval: interval,
		now:      time.Now,
	}
}

// Name implements Source
func (s *S3Source) Name() string {
	return "s3"
}

// Load implements Source. The object is fetched at most once per refresh
// interval, and only decoded again when its ETag changes.
func (s *S3Source) Load(ctx context.Context) ([]manifest.PluginRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded && s.now().Sub(s.fetchedAt) < s.interval {
		return s.records, nil
	}

	ctx, span := observability.Tracer().Start(ctx, "S3.GetObject",
		trace.WithAttributes(
			attribute.String("s3.operation", "GetObject"),
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", s.key),
		),
	)
	defer span.End()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get manifest from s3")
		return nil, fmt.Errorf("failed to get manifest from s3: %w", err)
	}
	defer out.Body.Close()

	etag := aws.ToString(out.ETag)
	if s.loaded && etag != "" && etag == s.etag {
		s.fetchedAt = s.now()
		return s.records, nil
	}

	data, err := io.ReadAll(out.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read manifest body")
		return nil, fmt.Errorf("failed to read manifest body: %w", err)
	}
	span.SetAttributes(attribute.Int("content.size", len(data)))

	records, err := manifest.DecodeBytes(data, s.format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid manifest")
		return nil, err
	}

	s.records = records
	s.loaded = true
	s.etag = etag
	s.fetchedAt = s.now()
	span.SetStatus(codes.Ok, "manifest loaded")
	return records, nil
}

// Check verifies the manifest object exists
func (s *S3Source) Check(ctx context.Context) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}
