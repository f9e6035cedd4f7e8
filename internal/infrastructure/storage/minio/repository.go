package minio

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/MedRx-Intelligence/internal/application/prescription"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

var (
	// ErrScanNotFound is returned when no object exists for the (user, scan) key.
	ErrScanNotFound = pkgerrors.New(pkgerrors.ErrCodeScanNotFound, "prescription scan not found")

	// ErrInvalidScanKey is returned when the user or scan identifier is empty.
	ErrInvalidScanKey = pkgerrors.New(pkgerrors.ErrCodeValidation, "scan key requires a user id and a scan id")
)

// scanObjectPrefix groups every archived scan under one key namespace so the
// retention lifecycle rule has a stable prefix to match on.
const scanObjectPrefix = "scans/"

// ScanArchive persists original prescription scans as objects keyed by
// (user, scan).  It backs the digitization service's archive port.
type ScanArchive struct {
	client *Client
	logger logging.Logger
}

var _ prescription.ScanArchive = (*ScanArchive)(nil)

// NewScanArchive builds a ScanArchive over client.
func NewScanArchive(client *Client, log logging.Logger) *ScanArchive {
	return &ScanArchive{client: client, logger: log}
}

// objectKey derives the storage key for a scan.  Embedding the user in the
// key makes ownership structural: a fetch scoped to the wrong user resolves
// to a key that cannot exist.
func objectKey(userID common.UserID, scanID string) string {
	return scanObjectPrefix + string(userID) + "/" + scanID
}

// Store archives scan bytes under the (user, scan) key.  An empty content
// type is sniffed from the payload.
func (a *ScanArchive) Store(ctx context.Context, userID common.UserID, scanID string, data []byte, contentType string) error {
	if userID == "" || scanID == "" {
		return ErrInvalidScanKey
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	key := objectKey(userID, scanID)
	_, err := a.client.api.PutObject(ctx, a.client.config.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeScanStoreFailed, "failed to store scan object")
	}

	a.logger.Debug("Scan archived",
		logging.String("user_id", string(userID)),
		logging.String("scan_id", scanID),
		logging.Int("size_bytes", len(data)),
	)
	return nil
}

// Fetch returns the archived bytes and content type of one of the user's
// scans.
func (a *ScanArchive) Fetch(ctx context.Context, userID common.UserID, scanID string) ([]byte, string, error) {
	if userID == "" || scanID == "" {
		return nil, "", ErrInvalidScanKey
	}

	key := objectKey(userID, scanID)
	stat, err := a.stat(ctx, key)
	if err != nil {
		return nil, "", err
	}

	obj, err := a.client.api.GetObject(ctx, a.client.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to open scan object")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to read scan object")
	}
	return data, stat.ContentType, nil
}

// DownloadURL returns a presigned, time-limited URL for one of the user's
// scans so large images can be served straight from object storage.
func (a *ScanArchive) DownloadURL(ctx context.Context, userID common.UserID, scanID string) (string, error) {
	if userID == "" || scanID == "" {
		return "", ErrInvalidScanKey
	}

	key := objectKey(userID, scanID)
	if _, err := a.stat(ctx, key); err != nil {
		return "", err
	}

	u, err := a.client.api.PresignedGetObject(ctx, a.client.config.Bucket, key, a.client.config.PresignExpiry, nil)
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to presign scan download")
	}
	return u.String(), nil
}

// stat resolves object metadata, mapping a missing key to ErrScanNotFound.
func (a *ScanArchive) stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	stat, err := a.client.api.StatObject(ctx, a.client.config.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return minio.ObjectInfo{}, ErrScanNotFound
		}
		return minio.ObjectInfo{}, pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to stat scan object")
	}
	return stat, nil
}
