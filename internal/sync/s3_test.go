package sync

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Destination_Write(t *testing.T) {
	fake := &fakeS3{}
	dest := &S3Destination{client: fake, bucket: "exports", key: "taskgraph/export.jsonl"}

	if err := dest.Write(context.Background(), []byte("{\"type\":\"header\"}\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if aws.ToString(fake.input.Bucket) != "exports" || aws.ToString(fake.input.Key) != "taskgraph/export.jsonl" {
		t.Fatalf("unexpected target %s/%s", aws.ToString(fake.input.Bucket), aws.ToString(fake.input.Key))
	}
	if aws.ToString(fake.input.ContentType) != "application/x-ndjson" {
		t.Fatalf("unexpected content type %q", aws.ToString(fake.input.ContentType))
	}
	if aws.ToInt64(fake.input.ContentLength) != int64(len(fake.body)) || !strings.Contains(fake.body, "header") {
		t.Fatalf("unexpected body %q", fake.body)
	}
	if dest.Name() != "s3://exports/taskgraph/export.jsonl" {
		t.Fatalf("unexpected name %q", dest.Name())
	}
}

func TestS3Destination_WriteError(t *testing.T) {
	dest := &S3Destination{client: &fakeS3{err: errors.New("denied")}, bucket: "b", key: "k"}
	err := dest.Write(context.Background(), []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "s3 put object") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewS3Destination_RequiresBucketAndKey(t *testing.T) {
	if _, err := NewS3Destination(context.Background(), S3Config{Key: "k", Region: "us-east-1"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
