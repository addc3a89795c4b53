package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const receiptPathPrefix = "receipts"

var ErrReceiptBucketFailed = errors.New("failed to prepare receipt bucket")

// ReceiptArchiver keeps a best-effort copy of payment creation receipts in
// object storage. Archival failures never affect the payment itself.
type ReceiptArchiver interface {
	ArchiveReceipt(ctx context.Context, paymentID string, body []byte) error
}

type NoopReceiptArchiver struct{}

func NewNoopReceiptArchiver() *NoopReceiptArchiver { return &NoopReceiptArchiver{} }

func (a *NoopReceiptArchiver) ArchiveReceipt(context.Context, string, []byte) error {
	return nil
}

// MinIOReceiptArchiver stores receipts in an S3-compatible bucket.
type MinIOReceiptArchiver struct {
	client     *minio.Client
	bucketName string
}

func NewMinIOReceiptArchiver(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOReceiptArchiver, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	archiver := &MinIOReceiptArchiver{client: client, bucketName: bucketName}
	if err := archiver.ensureBucketExists(context.Background()); err != nil {
		return nil, err
	}
	return archiver, nil
}

func (a *MinIOReceiptArchiver) ensureBucketExists(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucketName)
	if err != nil {
		return fmt.Errorf("%w: check bucket existence: %v", ErrReceiptBucketFailed, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket: %v", ErrReceiptBucketFailed, err)
		}
	}
	return nil
}

func (a *MinIOReceiptArchiver) ArchiveReceipt(ctx context.Context, paymentID string, body []byte) error {
	objectKey := fmt.Sprintf("%s/%s.json", receiptPathPrefix, paymentID)
	_, err := a.client.PutObject(ctx, a.bucketName, objectKey, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"Payment-ID":  paymentID,
			"Archived-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("archive receipt %s: %w", objectKey, err)
	}
	return nil
}
