package testutil

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// FakeS3 is an in-process S3 endpoint backed by gofakes3.
type FakeS3 struct {
	// URL is the base endpoint, including scheme
	URL string

	// Bucket is created before the helper returns
	Bucket string

	// Client is an aws-sdk-go-v2 client pointed at the endpoint
	Client *s3.Client
}

// NewFakeS3 starts a fake S3 server with one bucket. It is shut down when
// the test ends.
func NewFakeS3(t *testing.T, bucket string) *FakeS3 {
	t.Helper()

	backend := s3mem.New()
	faker := gofakes3.New(backend)
	server := httptest.NewServer(faker.Server())
	t.Cleanup(server.Close)

	if err := backend.CreateBucket(bucket); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(server.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("test", "test", ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &FakeS3{URL: server.URL, Bucket: bucket, Client: client}
}

// Put stores an object of size bytes under key.
func (f *FakeS3) Put(t *testing.T, key string, size int) {
	t.Helper()

	_, err := f.Client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:        aws.String(f.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(make([]byte, size)),
		ContentLength: aws.Int64(int64(size)),
	})
	if err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

// Keys lists every key in the bucket.
func (f *FakeS3) Keys(t *testing.T) []string {
	t.Helper()

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(f.Client, &s3.ListObjectsV2Input{Bucket: aws.String(f.Bucket)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.Background())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys
}
