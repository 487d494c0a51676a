package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/storage"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// Blob is one image to upload, already normalized by the caller.
type Blob struct {
	Data        []byte
	ContentType string
}

// IAssetUploader uploads an ordered batch of blobs under a listing's namespace.
type IAssetUploader interface {
	// Upload returns one URL per blob, in input order. Any failure fails the whole batch with *AssetTransferError.
	Upload(ctx context.Context, listingID utils.SixID, blobs []Blob) ([]string, error)
	// Discard deletes uploaded objects that no record will reference. Failures only leak storage.
	Discard(listingID utils.SixID, urls []string)
}

type assetUploader struct {
	store       storage.AssetStore
	concurrency int
	now         func() time.Time
	token       func() string
}

// NewAssetUploader creates an uploader running at most concurrency uploads at once.
func NewAssetUploader(store storage.AssetStore, concurrency int) IAssetUploader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &assetUploader{store: store, concurrency: concurrency, now: time.Now, token: uploadToken}
}

func uploadToken() string {
	return uuid.NewString()[:8]
}

// AssetPath is the object path for the index-th image of a listing uploaded at stamp.
// token tells apart uploads of the same index within one millisecond.
func AssetPath(listingID utils.SixID, index int, stamp time.Time, token, contentType string) string {
	return fmt.Sprintf("properties/%s/image_%d_%d_%s%s", listingID.String(), index, stamp.UnixMilli(), token, storage.ExtensionFor(contentType))
}

func (u *assetUploader) Upload(ctx context.Context, listingID utils.SixID, blobs []Blob) ([]string, error) {
	urls := make([]string, len(blobs))
	if len(blobs) == 0 {
		return urls, nil
	}
	errs := make([]error, len(blobs))

	sem := make(chan struct{}, u.concurrency)
	var wg sync.WaitGroup
	for i, blob := range blobs {
		wg.Add(1)
		go func(i int, blob Blob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			path := AssetPath(listingID, i, u.now(), u.token(), blob.ContentType)
			urls[i], errs[i] = u.store.PutBlob(ctx, path, blob.ContentType, blob.Data)
		}(i, blob)
	}
	wg.Wait()

	var result *multierror.Error
	var failed []int
	for i, err := range errs {
		if err != nil {
			failed = append(failed, i)
			result = multierror.Append(result, fmt.Errorf("image %d: %w", i, err))
		}
	}
	if len(failed) == 0 {
		return urls, nil
	}

	uploaded := make([]string, 0, len(urls))
	for i, url := range urls {
		if errs[i] == nil && url != "" {
			uploaded = append(uploaded, url)
		}
	}
	u.Discard(listingID, uploaded)
	return nil, &AssetTransferError{ListingID: listingID, Failed: failed, Total: len(blobs), Err: result.ErrorOrNil()}
}

func (u *assetUploader) Discard(listingID utils.SixID, urls []string) {
	if len(urls) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, url := range urls {
		path, ok := u.store.PathFromURL(url)
		if !ok {
			continue
		}
		if err := u.store.DeleteObject(ctx, path); err != nil {
			log.Printf("WARNING: failed to discard uploaded object %s of listing %s: %v", path, listingID.String(), err)
		}
	}
}
