package storage

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// Upload stores data under key, overwriting any previous object, and
	// returns the URL it is reachable at. public grants anonymous read.
	Upload(ctx context.Context, key string, data []byte, contentType string, public bool) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

// ExerciseMediaKey is the deterministic object key of an exercise's media
// file: {owner}/exercise_file/{exercise}/{filename}. Re-uploading the same
// file overwrites in place.
func ExerciseMediaKey(ownerID, exerciseID primitive.ObjectID, filename string) string {
	return path.Join(ownerID.Hex(), "exercise_file", exerciseID.Hex(), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." || name == "" {
		return uuid.NewString()
	}
	return name
}
