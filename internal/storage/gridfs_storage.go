package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AssetRoutePrefix is where the API serves GridFS objects.
const AssetRoutePrefix = "/v1/assets/"

const gridfsBucketName = "assets"

// GridFSAssetStore keeps listing photos in the same MongoDB deployment as the catalog.
// Objects are addressed by filename, which is the asset path. The v1 GridFS API takes no context,
// so uploads and downloads are bounded by the client's socket timeouts instead.
// A bucket is opened per call because *gridfs.Bucket carries per-operation state.
type GridFSAssetStore struct {
	db      *mongo.Database
	baseURL string
}

// NewGridFSAssetStore creates a GridFS-backed asset store. publicBaseURL is the externally visible API origin.
func NewGridFSAssetStore(db *mongo.Database, publicBaseURL string) (*GridFSAssetStore, error) {
	if db == nil {
		return nil, errors.New("GridFS asset store requires a database")
	}
	return &GridFSAssetStore{
		db:      db,
		baseURL: strings.TrimRight(publicBaseURL, "/") + AssetRoutePrefix,
	}, nil
}

func (g *GridFSAssetStore) openBucket() (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(g.db, options.GridFSBucket().SetName(gridfsBucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open GridFS bucket: %w", err)
	}
	return bucket, nil
}

func (g *GridFSAssetStore) PutBlob(ctx context.Context, path, contentType string, data []byte) (string, error) {
	bucket, err := g.openBucket()
	if err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType, "uploaded_at": time.Now().UTC()})
	if _, err := bucket.UploadFromStream(path, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("failed to upload object %s to GridFS: %w", path, err)
	}
	return g.baseURL + path, nil
}

// DeleteObject removes every revision stored under path.
func (g *GridFSAssetStore) DeleteObject(ctx context.Context, path string) error {
	bucket, err := g.openBucket()
	if err != nil {
		return err
	}
	cursor, err := bucket.Find(bson.M{"filename": path})
	if err != nil {
		return fmt.Errorf("failed to look up GridFS object %s: %w", path, err)
	}
	defer cursor.Close(ctx)

	var files []struct {
		ID interface{} `bson:"_id"`
	}
	if err := cursor.All(ctx, &files); err != nil {
		return fmt.Errorf("failed to read GridFS files for %s: %w", path, err)
	}
	if len(files) == 0 {
		return ErrObjectNotFound
	}
	for _, f := range files {
		if err := bucket.Delete(f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("failed to delete GridFS object %s: %w", path, err)
		}
	}
	return nil
}

func (g *GridFSAssetStore) PathFromURL(url string) (string, bool) {
	return trimPrefixPath(url, g.baseURL)
}

// Open streams the latest revision stored under path together with its content type.
func (g *GridFSAssetStore) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	bucket, err := g.openBucket()
	if err != nil {
		return nil, "", err
	}
	stream, err := bucket.OpenDownloadStreamByName(path)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("failed to open GridFS object %s: %w", path, err)
	}

	contentType := "application/octet-stream"
	if meta := stream.GetFile().Metadata; meta != nil {
		if v, err := meta.LookupErr("content_type"); err == nil {
			if s, ok := v.StringValueOK(); ok && s != "" {
				contentType = s
			}
		}
	}
	return stream, contentType, nil
}
