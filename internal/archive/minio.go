package archive

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/robopeer/internal/control"
	"github.com/autopeer-io/robopeer/pkg/log"
	"github.com/autopeer-io/robopeer/pkg/options"
)

// MinIO archives history as JSON-lines objects in an S3 bucket.
type MinIO struct {
	client     *minio.Client
	bucketName string
	robotID    string
	clock      clock.PassiveClock
}

var _ Archiver = (*MinIO)(nil)

func NewMinIO(opts *options.S3Options, robotID string) (*MinIO, error) {
	// Development setups use self-signed certificates.
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:       opts.UseSSL,
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIO{
		client:     client,
		bucketName: opts.BucketName,
		robotID:    robotID,
		clock:      clock.RealClock{},
	}, nil
}

// CheckBucket creates the bucket when it does not exist yet.
func (m *MinIO) CheckBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		log.Info("Bucket does not exist, creating...", "bucket", m.bucketName)
		if err := m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (m *MinIO) Archive(ctx context.Context, snaps []control.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	data, err := encode(snaps)
	if err != nil {
		return err
	}

	key := ObjectKey(m.robotID, m.clock.Now())
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if _, err := m.client.PutObject(ctx, m.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	}); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	log.Info("Archived command history", "bucket", m.bucketName, "object", key, "count", len(snaps))
	return nil
}
