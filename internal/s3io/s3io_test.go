package s3io

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseKey(t *testing.T) {
	tests := []struct {
		name    string
		created string
		want    string
		wantErr bool
	}{
		{name: "rfc3339 millis", created: "2024-07-23T15:49:29.995Z", want: "support-cases/123456789012/2024/07/17000001.json"},
		{name: "date only", created: "2023-01-02", want: "support-cases/123456789012/2023/01/17000001.json"},
		{name: "garbage", created: "yesterday", want: "support-cases/123456789012/unknown/00/17000001.json", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CaseKey("123456789012", tt.created, "17000001")
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseCaseKey(t *testing.T) {
	acct, id, ok := ParseCaseKey("support-cases/123456789012/2024/07/17000001.json")
	require.True(t, ok)
	assert.Equal(t, "123456789012", acct)
	assert.Equal(t, "17000001", id)

	_, _, ok = ParseCaseKey("support-cases/123456789012/2024/07/notes.txt")
	assert.False(t, ok)
	_, _, ok = ParseCaseKey("metadata/active_cases.csv")
	assert.False(t, ok)
}

type fakeS3 struct {
	objects map[string][]byte
	pages   [][]string
	putCT   string
	putSSE  types.ServerSideEncryption
	headErr error
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = b
	f.putCT = aws.ToString(in.ContentType)
	f.putSSE = in.ServerSideEncryption
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	idx := 0
	if in.ContinuationToken != nil {
		idx = int(aws.ToString(in.ContinuationToken)[0] - '0')
	}
	out := &s3.ListObjectsV2Output{}
	for _, k := range f.pages[idx] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if idx+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('0' + idx + 1)))
	}
	return out, nil
}

func TestS3Store_GetPut(t *testing.T) {
	f := &fakeS3{objects: map[string][]byte{}}
	s := &S3Store{Client: f, Bucket: "b", KMS: true}
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "a.csv", []byte("x"), ContentTypeCSV))
	assert.Equal(t, ContentTypeCSV, f.putCT)
	assert.Equal(t, types.ServerSideEncryptionAwsKms, f.putSSE)

	got, err := s.Get(ctx, "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestS3Store_ListPages(t *testing.T) {
	f := &fakeS3{pages: [][]string{{"a", "b"}, {"c"}}}
	s := &S3Store{Client: f, Bucket: "b"}

	var pages [][]string
	err := s.List(context.Background(), CasePrefix, func(keys []string) error {
		pages = append(pages, keys)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, pages)

	stop := errors.New("stop")
	err = s.List(context.Background(), CasePrefix, func([]string) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestS3Store_Ping(t *testing.T) {
	s := &S3Store{Client: &fakeS3{headErr: errors.New("no route")}, Bucket: "b"}
	assert.ErrorContains(t, s.Ping(context.Background()), "cannot access bucket b")
}
