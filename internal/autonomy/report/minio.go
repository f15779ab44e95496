// Package report archives terminated missions to S3-compatible object storage.
package report

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/roverpilot/internal/autonomy/gateway"
	"github.com/autopeer-io/roverpilot/pkg/log"
	"github.com/autopeer-io/roverpilot/pkg/options"
)

// ErrDisabled is returned by a Nop archive for every lookup.
var ErrDisabled = errors.New("report archive is disabled")

// objectStore is the subset of *minio.Client the archive uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration,
		reqParams url.Values) (*url.URL, error)
}

// Linker hands out download links for archived reports.
type Linker interface {
	PresignedURL(ctx context.Context, id string, finished time.Time, expiry time.Duration) (string, error)
}

// Archive writes mission reports as JSON objects keyed by finish date.
type Archive struct {
	client objectStore
	bucket string
	region string
	prefix string
}

var (
	_ gateway.Archiver = (*Archive)(nil)
	_ Linker           = (*Archive)(nil)
	_ Linker           = Nop{}
)

func NewMinIO(opts *options.S3Options) (*Archive, error) {
	// Rover deployments talk to a field MinIO with a self-signed certificate.
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return newArchive(client, opts), nil
}

func newArchive(client objectStore, opts *options.S3Options) *Archive {
	return &Archive{
		client: client,
		bucket: opts.BucketName,
		region: opts.Region,
		prefix: opts.Prefix,
	}
}

// CheckBucket makes sure the bucket exists, creating it if needed.
func (a *Archive) CheckBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		log.Info("Bucket does not exist, creating...", "bucket", a.bucket)
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Archive uploads r under Key(r).
func (a *Archive) Archive(ctx context.Context, r gateway.Report) error {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ID, err)
	}

	key := a.Key(r.ID, r.Finished)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"outcome": string(r.Outcome)},
	})
	if err != nil {
		return fmt.Errorf("upload report %s: %w", key, err)
	}

	log.Info("Mission report archived", "bucket", a.bucket, "key", key, "size", len(body))
	return nil
}

// Key returns the object key of the report of mission id finished at finished (UTC date).
func (a *Archive) Key(id string, finished time.Time) string {
	d := finished.UTC()
	return path.Join(a.prefix, fmt.Sprintf("%04d", d.Year()), fmt.Sprintf("%02d", int(d.Month())),
		fmt.Sprintf("%02d", d.Day()), id+".json")
}

// PresignedURL returns a temporary download link for the report of mission id.
func (a *Archive) PresignedURL(ctx context.Context, id string, finished time.Time, expiry time.Duration) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-type", "application/json")

	u, err := a.client.PresignedGetObject(ctx, a.bucket, a.Key(id, finished), expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned url: %w", err)
	}
	return u.String(), nil
}

// Nop is used when the archive is disabled.
type Nop struct{}

func (Nop) Archive(context.Context, gateway.Report) error { return nil }

func (Nop) PresignedURL(context.Context, string, time.Time, time.Duration) (string, error) {
	return "", ErrDisabled
}
