package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wellnest/survey-api/internal/survey/application"
)

// Config は S3 互換ストレージ(S3 / R2 / MinIO)の接続設定。
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	BasePath        string
	ForcePathStyle  bool
	PresignExpiry   time.Duration
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

type presignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// MediaStorage はアンケートのロゴ・画像を保存する。
type MediaStorage struct {
	objects  objectAPI
	presign  presignAPI
	bucket   string
	basePath string
	expiry   time.Duration
}

func NewMediaStorage(cfg Config) (*MediaStorage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("S3 バケットが設定されていません")
	}
	opts := func(o *s3.Options) {
		o.Region = cfg.Region
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}
	client := s3.New(s3.Options{}, opts)
	return newMediaStorage(client, s3.NewPresignClient(client), cfg), nil
}

func newMediaStorage(objects objectAPI, presign presignAPI, cfg Config) *MediaStorage {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &MediaStorage{
		objects:  objects,
		presign:  presign,
		bucket:   cfg.Bucket,
		basePath: cfg.BasePath,
		expiry:   expiry,
	}
}

var _ application.MediaStorage = (*MediaStorage)(nil)

// Upload は key にデータを保存し、保存したキーを返す。
func (m *MediaStorage) Upload(ctx context.Context, data []byte, contentType, key string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.basePath + key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if _, err := m.objects.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return key, nil
}

func (m *MediaStorage) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.basePath + key),
	}
	if _, err := m.objects.DeleteObject(ctx, input); err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

// Copy は既存ファイルを別フォルダへ複製する。コピー元が無ければ (false, nil)。
func (m *MediaStorage) Copy(ctx context.Context, srcFolder, srcKey, destFolder, destKey string) (bool, error) {
	source := m.basePath + joinKey(srcFolder, srcKey)
	_, err := m.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(source),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("s3 head failed: %w", err)
	}
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(m.bucket),
		CopySource: aws.String(copySource(m.bucket, source)),
		Key:        aws.String(m.basePath + joinKey(destFolder, destKey)),
	}
	if _, err := m.objects.CopyObject(ctx, input); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 copy failed: %w", err)
	}
	return true, nil
}

// PresignUpload はクライアントが直接 PUT するための署名付き URL を返す。
func (m *MediaStorage) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(m.basePath + key),
		ContentType: aws.String(contentType),
	}
	result, err := m.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(m.expiry))
	if err != nil {
		return "", fmt.Errorf("presign failed: %w", err)
	}
	return result.URL, nil
}

func joinKey(folder, key string) string {
	folder = strings.Trim(folder, "/")
	key = strings.TrimLeft(key, "/")
	if folder == "" {
		return key
	}
	return folder + "/" + key
}

func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noKey *types.NoSuchKey
	return errors.As(err, &noKey)
}
