package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testme/testme-backend/pkg/errors"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	body    []byte
	deleted []string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, in)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Archive_Upload(t *testing.T) {
	fake := &fakeS3{}
	archive := newS3Archive(fake, "testme-licenses", "/licenses/")

	key, err := archive.Upload(context.Background(), "booking-1", []byte("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "licenses/booking-1/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "testme-licenses", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, key, aws.ToString(fake.puts[0].Key))
	assert.Equal(t, "image/jpeg", aws.ToString(fake.puts[0].ContentType))
	assert.Equal(t, []byte("jpeg bytes"), fake.body)
}

func TestS3Archive_Errors(t *testing.T) {
	fake := &fakeS3{err: fmt.Errorf("access denied")}
	archive := newS3Archive(fake, "bucket", "")

	_, err := archive.Upload(context.Background(), "booking-1", []byte("x"), "application/pdf")
	assert.True(t, errors.Is(err, errors.ErrUpstream))

	err = archive.Delete(context.Background(), "booking-1/a.pdf")
	assert.True(t, errors.Is(err, errors.ErrUpstream))
}

func TestS3Archive_Delete(t *testing.T) {
	fake := &fakeS3{}
	archive := newS3Archive(fake, "bucket", "licenses")

	require.NoError(t, archive.Delete(context.Background(), "licenses/b/1.png"))
	assert.Equal(t, []string{"licenses/b/1.png"}, fake.deleted)
}

func TestNewS3Archive_RequiresBucket(t *testing.T) {
	_, err := NewS3Archive(context.Background(), "eu-central-1", "", "licenses")
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
