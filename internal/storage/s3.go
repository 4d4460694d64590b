package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3 - хранилище в бакете S3 и подпись ссылок вида s3://bucket/key.
type S3 struct {
	Client        *s3.Client
	Presign       *s3.PresignClient
	Bucket        string
	Prefix        string
	PublicBaseURL string
	URLTTL        time.Duration
}

type S3Config struct {
	Region        string
	Bucket        string
	Prefix        string
	PublicBaseURL string
	URLTTL        time.Duration
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("storage: aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		Client:        client,
		Presign:       s3.NewPresignClient(client),
		Bucket:        cfg.Bucket,
		Prefix:        cfg.Prefix,
		PublicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		URLTTL:        cfg.URLTTL,
	}, nil
}

func (s *S3) Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error) {
	key := s.objectKey(in)
	body := &countingReader{r: r}

	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(in.ContentType),
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("storage: s3 put: %w", err)
	}

	url := "s3://" + s.Bucket + "/" + key
	if s.PublicBaseURL != "" {
		url = s.PublicBaseURL + "/" + key
	}
	return PutResult{Key: key, URL: url, Size: body.n}, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	return err
}

// SignURL подписывает ссылки s3://bucket/key, прочие отдаёт как есть.
func (s *S3) SignURL(ctx context.Context, ref string) (string, error) {
	bucket, key, ok := ParseS3Ref(ref)
	if !ok {
		return ref, nil
	}
	req, err := s.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.URLTTL))
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", ref, err)
	}
	return req.URL, nil
}

func (s *S3) objectKey(in PutInput) string {
	ext := strings.ToLower(filepath.Ext(in.Filename))
	key := uuid.NewString() + ext
	if in.Owner != "" {
		key = sanitizeFilename(in.Owner, "shared") + "/" + key
	}
	if s.Prefix != "" {
		key = strings.Trim(s.Prefix, "/") + "/" + key
	}
	return key
}

func (s *S3) String() string { return fmt.Sprintf("s3(%s/%s)", s.Bucket, s.Prefix) }

// ParseS3Ref разбирает ссылку s3://bucket/key.
func ParseS3Ref(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
