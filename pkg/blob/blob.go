// Package blob abstracts the object store holding uploaded videos and
// offloaded result payloads. The production implementation targets Amazon S3
// or any S3-compatible endpoint; an in-memory implementation backs tests.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Head and Download when no object exists at the
// key. The upload preflight distinguishes this from transient errors.
var ErrNotFound = errors.New("blob not found")

// ContentTypeMP4 is the content type presigned video PUTs are issued for.
const ContentTypeMP4 = "video/mp4"

// Store is the object-store port.
type Store interface {
	// PresignPut issues a short-lived presigned PUT URL for key.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// Head checks object existence and returns its size. Returns ErrNotFound
	// when the object does not exist.
	Head(ctx context.Context, key string) (int64, error)

	// Download streams the object at key into the local file at destPath.
	Download(ctx context.Context, key, destPath string) error

	// Put writes body at key.
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// Delete removes the object at key. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// VideoKey builds the blob key for an uploaded video:
// {owner}/{session}/{job}.{ext}
func VideoKey(ownerID, sessionID, jobID, ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", ownerID, sessionID, jobID, ext)
}

// ResultsKey builds the blob key for an offloaded results payload:
// {owner}/{session}/{job}/{pass}_results.json
func ResultsKey(ownerID, sessionID, jobID, pass string) string {
	return fmt.Sprintf("%s/%s/%s/%s_results.json", ownerID, sessionID, jobID, pass)
}
