package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects   map[string][]byte
	putErr    error
	getErr    error
	deleteErr error
	headErr   error
	createErr error
	created   bool
	lastType  string
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = b
	f.lastType = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(b)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) CreateBucket(context.Context, *s3.CreateBucketInput, ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = true
	return &s3.CreateBucketOutput{}, f.createErr
}

func TestNewS3Store_AppliesConfig(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	fake := newFakeS3()
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return fake
	}

	st, err := NewS3Store(context.Background(), S3Config{
		Region:       "eu-central-1",
		BaseEndpoint: "http://127.0.0.1:9000",
		Bucket:       "wopi",
	})
	require.NoError(t, err)
	assert.Equal(t, "wopi", st.bucket)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := NewS3Store(context.Background(), S3Config{})
	assert.ErrorContains(t, err, "no creds")
}

func TestS3Store_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	st := &S3Store{client: fake, bucket: "b"}

	require.NoError(t, st.Put(ctx, "k", []byte("hello"), "text/plain"))
	assert.Equal(t, "text/plain", fake.lastType)

	rc, err := st.Get(ctx, "k")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(b))

	require.NoError(t, st.Delete(ctx, "k"))
	_, err = st.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.putErr = errors.New("put boom")
	fake.getErr = errors.New("get boom")
	fake.deleteErr = errors.New("delete boom")
	st := &S3Store{client: fake, bucket: "b"}

	assert.ErrorContains(t, st.Put(ctx, "k", nil, ""), "put boom")
	_, err := st.Get(ctx, "k")
	assert.ErrorContains(t, err, "get boom")
	assert.ErrorContains(t, st.Delete(ctx, "k"), "delete boom")
}

func TestS3Store_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	fake := newFakeS3()
	st := &S3Store{client: fake, bucket: "b"}
	require.NoError(t, st.EnsureBucket(ctx))
	assert.False(t, fake.created)

	fake.headErr = errors.New("404")
	require.NoError(t, st.EnsureBucket(ctx))
	assert.True(t, fake.created)

	fake.createErr = &types.BucketAlreadyOwnedByYou{}
	require.NoError(t, st.EnsureBucket(ctx))

	fake.createErr = errors.New("denied")
	assert.ErrorContains(t, st.EnsureBucket(ctx), "denied")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, st.Put(ctx, "k", data, ""))
	data[0] = 'x'

	rc, err := st.Get(ctx, "k")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "abc", string(b))
	assert.Equal(t, 1, st.Len())

	require.NoError(t, st.Delete(ctx, "k"))
	_, err = st.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestNewKey(t *testing.T) {
	a, b := NewKey("f1"), NewKey("f1")
	assert.True(t, strings.HasPrefix(a, "files/f1/"))
	assert.NotEqual(t, a, b)
}
