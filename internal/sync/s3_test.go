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

type putCall struct {
	key, contentType, body string
	meta                   map[string]string
}

// fakePutter records every PutObject call and fails from failAt onwards.
type fakePutter struct {
	bucket string
	calls  []putCall
	failAt int
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil && len(f.calls) >= f.failAt {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.bucket = aws.ToString(in.Bucket)
	f.calls = append(f.calls, putCall{
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		body:        string(b),
		meta:        in.Metadata,
	})
	return &s3.PutObjectOutput{}, nil
}

func TestS3Destination_Write(t *testing.T) {
	fake := &fakePutter{}
	dest := &S3Destination{client: fake, bucket: "backups", key: "rendezvous/backup.jsonl"}

	snap, err := Load(context.Background(), seededStore(t), syncTime)
	if err != nil {
		t.Fatal(err)
	}
	if err := dest.Write(context.Background(), snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	if fake.bucket != "backups" {
		t.Fatalf("bucket = %q", fake.bucket)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(fake.calls))
	}
	jsonl, ics := fake.calls[0], fake.calls[1]

	if jsonl.key != "rendezvous/backup.jsonl" || jsonl.contentType != "application/x-ndjson" {
		t.Errorf("jsonl upload = %s (%s)", jsonl.key, jsonl.contentType)
	}
	if n := len(nonEmptyLines(jsonl.body)); n != 5 {
		t.Errorf("expected 5 JSONL lines, got %d", n)
	}
	if ics.key != "rendezvous/backup.ics" || !strings.HasPrefix(ics.contentType, "text/calendar") {
		t.Errorf("ics upload = %s (%s)", ics.key, ics.contentType)
	}
	if !strings.Contains(ics.body, "BEGIN:VCALENDAR") || strings.Count(ics.body, "BEGIN:VEVENT") != 2 {
		t.Errorf("unexpected calendar body:\n%s", ics.body)
	}

	want := map[string]string{"profiles": "2", "events": "2", "ledger-entries": "1", "taken": "2024-03-10T12:00:00Z"}
	for k, v := range want {
		if jsonl.meta[k] != v {
			t.Errorf("metadata %s = %q, want %q", k, jsonl.meta[k], v)
		}
	}
}

func TestS3Destination_KeyWithoutExtension(t *testing.T) {
	fake := &fakePutter{}
	dest := &S3Destination{client: fake, bucket: "b", key: "backup"}
	if err := dest.Write(context.Background(), &Snapshot{Taken: syncTime}); err != nil {
		t.Fatal(err)
	}
	if fake.calls[0].key != "backup.jsonl" || fake.calls[1].key != "backup.ics" {
		t.Fatalf("keys = %q, %q", fake.calls[0].key, fake.calls[1].key)
	}
}

func TestS3Destination_Error(t *testing.T) {
	fake := &fakePutter{err: errors.New("access denied"), failAt: 1}
	dest := &S3Destination{client: fake, bucket: "b", key: "k.jsonl"}
	err := dest.Write(context.Background(), &Snapshot{Taken: syncTime})
	if err == nil || !strings.Contains(err.Error(), "access denied") || !strings.Contains(err.Error(), "k.ics") {
		t.Fatalf("expected wrapped error naming the calendar key, got %v", err)
	}
}
