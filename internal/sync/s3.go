package sync

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// objectPutter is the part of the S3 API the destination uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination uploads every artifact of a snapshot to an S3-compatible
// bucket. key names the JSONL object; the calendar is stored beside it with
// an .ics extension.
type S3Destination struct {
	client objectPutter
	bucket string
	key    string
}

// NewS3Destination loads the default AWS credential chain. A non-empty
// endpoint switches to path-style addressing for MinIO and similar servers.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

func (d *S3Destination) Name() string { return "s3" }

func (d *S3Destination) Write(ctx context.Context, snap *Snapshot) error {
	artifacts, err := Render(snap)
	if err != nil {
		return err
	}
	meta := map[string]string{
		"profiles":       strconv.Itoa(len(snap.Profiles)),
		"events":         strconv.Itoa(len(snap.Events)),
		"ledger-entries": strconv.Itoa(snap.LedgerEntries()),
		"taken":          snap.Taken.UTC().Format("2006-01-02T15:04:05Z"),
	}
	for _, a := range artifacts {
		key := artifactPath(d.key, a)
		_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(d.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(a.Body),
			ContentType: aws.String(a.ContentType),
			Metadata:    meta,
		})
		if err != nil {
			return fmt.Errorf("s3 put %s: %w", key, err)
		}
	}
	return nil
}
