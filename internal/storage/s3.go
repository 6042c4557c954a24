package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// deleteBatchSize is the S3 DeleteObjects per-request limit.
const deleteBatchSize = 1000

// S3Config selects the bucket endpoint and credentials profile.
type S3Config struct {
	Region   string
	Endpoint string
	Profile  string
}

// S3Service stores objects in Amazon S3 (or compatible APIs).
type S3Service struct {
	client   *s3.Client
	uploader *manager.Uploader
}

func NewS3Service(client *s3.Client) *S3Service {
	return &S3Service{
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

// NewS3ServiceFromConfig loads AWS credentials and builds a client. A custom
// endpoint switches to path-style addressing for S3-compatible servers.
func NewS3ServiceFromConfig(ctx context.Context, cfg S3Config) (*S3Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Service(client), nil
}

func (s *S3Service) UploadFile(ctx context.Context, localPath string, opts UploadOptions) (string, error) {
	if opts.Bucket == "" {
		return "", fmt.Errorf("storage bucket is required")
	}
	key := strings.Trim(opts.Key, "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file %s: %w", localPath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat file %s: %w", localPath, err)
	}

	var reader io.Reader = f
	progress := newUploadProgress(fi.Size(), opts.ProgressCallback)
	if progress != nil {
		reader = io.TeeReader(f, progress)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(key),
		Body:   reader,
		ACL:    types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", localPath, err)
	}

	if progress != nil {
		progress.done()
	}

	return fmt.Sprintf("s3://%s/%s", opts.Bucket, key), nil
}

// ListObjects returns the objects directly under opts.Prefix whose key
// passes opts.Match. Keys in deeper "directories" are not listed.
func (s *S3Service) ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Delimiter: aws.String("/"),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}

	var objects []ObjectInfo
	pages := s3.NewListObjectsV2Paginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, opts.Prefix, err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: obj.LastModified,
			}
			if opts.Matches(info.Key) {
				objects = append(objects, info)
			}
		}
	}
	return objects, nil
}

func (s *S3Service) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		identifiers := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			identifiers = append(identifiers, types.ObjectIdentifier{Key: aws.String(key)})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: identifiers,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("delete objects: %w", err)
		}
	}

	return nil
}

var _ Service = (*S3Service)(nil)

// uploadProgress counts bytes read by the uploader and calls back each time
// another tenth of the file has gone out.
type uploadProgress struct {
	total    int64
	sent     atomic.Int64
	lastStep atomic.Int64
	notify   func(done, total int64)
}

func newUploadProgress(total int64, notify func(done, total int64)) *uploadProgress {
	if notify == nil {
		return nil
	}
	return &uploadProgress{total: total, notify: notify}
}

func (p *uploadProgress) Write(b []byte) (int, error) {
	sent := p.sent.Add(int64(len(b)))
	if p.total <= 0 {
		return len(b), nil
	}
	step := sent * 10 / p.total
	if prev := p.lastStep.Load(); step > prev && p.lastStep.CompareAndSwap(prev, step) {
		p.notify(sent, p.total)
	}
	return len(b), nil
}

// done reports completion unless the last write already did.
func (p *uploadProgress) done() {
	if p.lastStep.Swap(10) < 10 {
		p.notify(p.sent.Load(), p.total)
	}
}
