package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/config"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	deletes []string
	putErr  error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(params.Body)
	f.puts = append(f.puts, params)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3AssetStore_PutBlob_DefaultURL(t *testing.T) {
	client := &fakeS3{}
	store := newS3AssetStore(client, &config.Config{AwsS3Bucket: "fotos", AwsRegion: "us-east-1"})

	url, err := store.PutBlob(context.Background(), "properties/ABC/image_0_1.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "https://fotos.s3.us-east-1.amazonaws.com/properties/ABC/image_0_1.jpg", url)

	require.Len(t, client.puts, 1)
	assert.Equal(t, "fotos", *client.puts[0].Bucket)
	assert.Equal(t, "image/jpeg", *client.puts[0].ContentType)
	assert.Equal(t, types.ObjectCannedACL(""), client.puts[0].ACL)
	assert.Equal(t, []byte("jpeg"), client.bodies[0])

	path, ok := store.PathFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, "properties/ABC/image_0_1.jpg", path)
}

func TestS3AssetStore_PublicReadAndBaseURL(t *testing.T) {
	client := &fakeS3{}
	store := newS3AssetStore(client, &config.Config{
		AwsS3Bucket:     "fotos",
		AwsS3PublicRead: true,
		ImageBaseS3URL:  "https://cdn.example.com/",
	})

	url, err := store.PutBlob(context.Background(), "properties/ABC/image_1_2.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/properties/ABC/image_1_2.png", url)
	assert.Equal(t, types.ObjectCannedACLPublicRead, client.puts[0].ACL)

	_, ok := store.PathFromURL("https://elsewhere.example.com/properties/ABC/image_1_2.png")
	assert.False(t, ok)
}

func TestS3AssetStore_Errors(t *testing.T) {
	client := &fakeS3{putErr: errors.New("throttled")}
	store := newS3AssetStore(client, &config.Config{AwsS3Bucket: "fotos", AwsRegion: "sa-east-1"})

	_, err := store.PutBlob(context.Background(), "p", "image/jpeg", nil)
	assert.ErrorContains(t, err, "throttled")

	require.NoError(t, store.DeleteObject(context.Background(), "properties/ABC/image_0_1.jpg"))
	assert.Equal(t, []string{"properties/ABC/image_0_1.jpg"}, client.deletes)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".jpg", ExtensionFor("image/jpeg"))
	assert.Equal(t, ".png", ExtensionFor("image/png"))
	assert.Equal(t, "", ExtensionFor("application/x-unknown-thing"))
}
