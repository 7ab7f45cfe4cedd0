package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"propledger/internal/common"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ProofBucket holds externally uploaded proof-of-payment artifacts
// (receipts, bank slips). Payments store only the opaque object reference.
const ProofBucket = "payment-proofs"

// storeTimeout bounds every call to the external object store. Store
// failures surface as StorageError and never touch ledger state.
const storeTimeout = 15 * time.Second

type ProofService interface {
	Upload(ctx context.Context, reader io.Reader, size int64, contentType string) (string, error)
	SignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, ref string) error
	EnsureBucketExists(ctx context.Context) error
}

type proofService struct {
	client *minio.Client
}

func NewProofService(endpoint, accessKey, secretKey string, useSSL bool) (ProofService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &proofService{client: client}, nil
}

// Upload stores an artifact and returns the opaque reference the payment
// record will carry.
func (p *proofService) Upload(ctx context.Context, reader io.Reader, size int64, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	ref := fmt.Sprintf("proof/%s", uuid.New().String())
	_, err := p.client.PutObject(ctx, ProofBucket, ref, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &common.StorageError{Op: "upload", Err: err}
	}
	return ref, nil
}

// SignedURL brokers time-limited access to a stored artifact.
func (p *proofService) SignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	url, err := p.client.PresignedGetObject(ctx, ProofBucket, ref, expiry, nil)
	if err != nil {
		return "", &common.StorageError{Op: "sign", Err: err}
	}
	return url.String(), nil
}

func (p *proofService) Delete(ctx context.Context, ref string) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := p.client.RemoveObject(ctx, ProofBucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return &common.StorageError{Op: "delete", Err: err}
	}
	return nil
}

func (p *proofService) EnsureBucketExists(ctx context.Context) error {
	found, err := p.client.BucketExists(ctx, ProofBucket)
	if err != nil {
		return &common.StorageError{Op: "bucket check", Err: err}
	}
	if !found {
		if err := p.client.MakeBucket(ctx, ProofBucket, minio.MakeBucketOptions{}); err != nil {
			return &common.StorageError{Op: "bucket create", Err: err}
		}
	}
	return nil
}
