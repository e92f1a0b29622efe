package adapters

import (
	"context"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// S3FetcherAdapter serves s3://bucket/key artifact URLs from an S3
// compatible mirror.
type S3FetcherAdapter struct {
	client *s3.Client
}

func NewS3FetcherAdapter(ctx context.Context, cfg S3Config) (*S3FetcherAdapter, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to load s3 configuration").
			WithCause(err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3FetcherAdapter{client: client}, nil
}

func (a *S3FetcherAdapter) Fetch(ctx context.Context, bucket string, key string, w io.Writer, progress func(read int64, total int64)) error {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to get s3 object " + bucket + "/" + key).
			WithCause(err)
	}
	defer out.Body.Close()
	total := int64(-1)
	if out.ContentLength != nil {
		total = *out.ContentLength
	}
	_, err = io.Copy(w, &progressReader{r: out.Body, total: total, fn: progress})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read s3 object").
			WithCause(err)
	}
	return nil
}

var _ ObjectFetcher = (*S3FetcherAdapter)(nil)
