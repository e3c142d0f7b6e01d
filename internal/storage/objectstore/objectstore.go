// Package objectstore реализует загрузку файлов профиля в S3-совместимое
// объектное хранилище. Клиент настраивается статическими учетными данными
// и пользовательским endpoint, поэтому работает как с AWS S3, так и с
// совместимыми провайдерами (MinIO, R2).
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/scanhub/internal/config"
)

// Client инкапсулирует клиент S3 и имя bucket.
type Client struct {
	s3client *s3.Client
	bucket   string
}

// New создает клиент объектного хранилища по настройкам конфига.
func New(cfg config.ObjectStorage) (*Client, error) {
	const op = "objectstore.New"
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is not configured", op)
	}

	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"",
	)

	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: creds,
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3client: client,
		bucket:   cfg.Bucket,
	}, nil
}

// Upload сохраняет содержимое data под случайным ключом в каталоге prefix,
// сохраняя расширение исходного имени файла. Возвращает ключ объекта.
func (c *Client) Upload(ctx context.Context, prefix, filename, contentType string, data io.Reader) (string, error) {
	const op = "objectstore.Upload"

	key := fmt.Sprintf("%s/%s%s", prefix, uuid.New().String(), path.Ext(filename))

	_, err := c.s3client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%s: %s: %w", op, apiErr.ErrorCode(), err)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return key, nil
}
