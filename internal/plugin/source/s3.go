package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openmark/openmark/internal/plugin"
)

// S3SourcePlugin fetches PDFs from an S3-compatible object store (AWS S3,
// MinIO). Registers as "s3".
type S3SourcePlugin struct {
	client *minio.Client
	bucket string
	prefix string
}

var S3Descriptor = plugin.Descriptor{
	Family: plugin.FamilySource,
	Name:   plugin.NameFromType("S3SourcePlugin"),
	Factory: func(cfg plugin.Config) (any, error) {
		return NewS3SourcePlugin(S3Options{
			Endpoint:  cfg.String("endpoint", ""),
			AccessKey: cfg.String("access_key", ""),
			SecretKey: cfg.String("secret_key", ""),
			Bucket:    cfg.String("bucket", "documents"),
			Prefix:    cfg.String("prefix", ""),
			UseSSL:    cfg.Bool("use_ssl", true),
		})
	},
}

type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

func NewS3SourcePlugin(opts S3Options) (*S3SourcePlugin, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("s3 source: endpoint is required")
	}
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 source: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := mc.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 source: checking bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("s3 source: bucket %q does not exist", opts.Bucket)
	}
	return &S3SourcePlugin{client: mc, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

func (p *S3SourcePlugin) Fetch(ctx context.Context, documentID string) ([]byte, error) {
	key := p.key(documentID)
	obj, err := p.client.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, plugin.ErrAbsent
		}
		return nil, fmt.Errorf("reading object: %w", err)
	}
	return data, nil
}

func (p *S3SourcePlugin) Exists(ctx context.Context, documentID string) (bool, error) {
	_, err := p.client.StatObject(ctx, p.bucket, p.key(documentID), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

func (p *S3SourcePlugin) key(documentID string) string {
	return p.prefix + DocumentFileName(documentID)
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
