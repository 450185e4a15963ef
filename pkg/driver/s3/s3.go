// Package s3 implements driver.Driver on an S3 (or S3-compatible) bucket.
//
// A location /a/b.txt maps to the object key <prefix>a/b.txt. Directories
// are key prefixes; CreateDirectory materialises them with a zero-length
// marker object whose key ends in "/" so that empty directories survive.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/driver"
)

// maxDeleteBatch is the S3 limit on keys per DeleteObjects call.
const maxDeleteBatch = 1000

// API is the subset of *s3.Client used by the driver.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config configures the S3 driver.
type Config struct {
	// Client performs the S3 calls, usually an *s3.Client
	Client API

	// Bucket holds every object of the driver
	Bucket string

	// KeyPrefix is prepended to every object key. A trailing "/" is added
	// when missing.
	KeyPrefix string

	// SkipBucketCheck disables the HeadBucket probe performed by New.
	SkipBucketCheck bool
}

// Driver stores files as objects.
type Driver struct {
	client API
	bucket string
	prefix string
}

// New creates the driver and verifies that the bucket is reachable.
func New(ctx context.Context, cfg Config) (*Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	prefix := strings.TrimPrefix(cfg.KeyPrefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	if !cfg.SkipBucketCheck {
		_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)})
		if err != nil {
			return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Driver{client: cfg.Client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// URL renders p as s3://bucket/key.
func (d *Driver) URL(p string) string {
	return "s3://" + d.bucket + "/" + d.objectKey(p)
}

// objectKey is the key of the file at p.
func (d *Driver) objectKey(p string) string {
	return d.prefix + strings.TrimPrefix(driver.Clean(p), "/")
}

// dirPrefix is the key prefix shared by everything beneath directory p,
// which is also the key of its marker object.
func (d *Driver) dirPrefix(p string) string {
	if driver.Clean(p) == "/" {
		return d.prefix
	}
	return d.objectKey(p) + "/"
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

type kind int

const (
	kindNone kind = iota
	kindFile
	kindDir
)

// head returns the object metadata of key, or nil when it does not exist.
func (d *Driver) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to head object: %w", err)
	}
	return out, nil
}

// hasChildren reports whether any object lives beneath prefix.
func (d *Driver) hasChildren(ctx context.Context, prefix string) (bool, error) {
	out, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list objects: %w", err)
	}
	return len(out.Contents) > 0, nil
}

// kindOf tells a file object from a directory. A directory is either a
// marker object or any prefix with objects beneath it.
func (d *Driver) kindOf(ctx context.Context, p string) (kind, error) {
	if driver.Clean(p) == "/" {
		return kindDir, nil
	}

	file, err := d.head(ctx, d.objectKey(p))
	if err != nil {
		return kindNone, err
	}
	if file != nil {
		return kindFile, nil
	}

	found, err := d.hasChildren(ctx, d.dirPrefix(p))
	if err != nil {
		return kindNone, err
	}
	if found {
		return kindDir, nil
	}
	return kindNone, nil
}

func (d *Driver) requireParent(ctx context.Context, op, p string) error {
	k, err := d.kindOf(ctx, driver.Parent(p))
	if err != nil {
		return driver.Errorf(op, p, err)
	}
	switch k {
	case kindNone:
		return driver.Errorf(op, driver.Parent(p), driver.ErrNotFound)
	case kindFile:
		return driver.Errorf(op, p, driver.ErrNotDirectory)
	}
	return nil
}

// Read downloads the object of p. A missing object that turns out to be a
// directory prefix fails with driver.ErrIsDirectory.
func (d *Driver) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(p)),
	})
	if err != nil {
		if isNotFound(err) {
			if k, kerr := d.kindOf(ctx, p); kerr == nil && k == kindDir {
				return nil, driver.Errorf("read", p, driver.ErrIsDirectory)
			}
			return nil, driver.Errorf("read", p, driver.ErrNotFound)
		}
		return nil, driver.Errorf("read", p, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, driver.Errorf("read", p, err)
	}
	return data, nil
}

func (d *Driver) put(ctx context.Context, key string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// Write uploads data as the object of p in a single PutObject.
//
// The parent directory must exist, and p must not be a directory.
func (d *Driver) Write(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if driver.Clean(p) == "/" {
		return driver.Errorf("write", p, driver.ErrIsDirectory)
	}
	if err := d.requireParent(ctx, "write", p); err != nil {
		return err
	}

	if k, err := d.kindOf(ctx, p); err != nil {
		return driver.Errorf("write", p, err)
	} else if k == kindDir {
		return driver.Errorf("write", p, driver.ErrIsDirectory)
	}

	if err := d.put(ctx, d.objectKey(p), data); err != nil {
		return driver.Errorf("write", p, err)
	}
	return nil
}

// CreateEmpty uploads a zero-length object.
func (d *Driver) CreateEmpty(ctx context.Context, p string) error {
	return d.Write(ctx, p, nil)
}

// CreateDirectory writes the marker object of p.
//
// With withIntermediates a marker is written for every missing ancestor,
// and an existing directory is accepted. A file object anywhere on the
// way fails the call.
func (d *Driver) CreateDirectory(ctx context.Context, p string, withIntermediates bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k, err := d.kindOf(ctx, p)
	if err != nil {
		return driver.Errorf("mkdir", p, err)
	}
	switch {
	case k == kindFile:
		return driver.Errorf("mkdir", p, driver.ErrExists)
	case k == kindDir && withIntermediates:
		return nil
	case k == kindDir:
		return driver.Errorf("mkdir", p, driver.ErrExists)
	}

	if !withIntermediates {
		if err := d.requireParent(ctx, "mkdir", p); err != nil {
			return err
		}
		if err := d.put(ctx, d.dirPrefix(p), nil); err != nil {
			return driver.Errorf("mkdir", p, err)
		}
		return nil
	}

	// Collect missing ancestors bottom-up, then create them top-down.
	var missing []string
	for cur := driver.Clean(p); cur != "/"; cur = driver.Parent(cur) {
		k, err := d.kindOf(ctx, cur)
		if err != nil {
			return driver.Errorf("mkdir", cur, err)
		}
		if k == kindFile {
			return driver.Errorf("mkdir", cur, driver.ErrNotDirectory)
		}
		if k == kindDir {
			break
		}
		missing = append(missing, cur)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if err := d.put(ctx, d.dirPrefix(missing[i]), nil); err != nil {
			return driver.Errorf("mkdir", missing[i], err)
		}
	}
	return nil
}

// List returns the direct children of p sorted by name. Common prefixes
// are reported as directories; the directory's own marker is skipped.
func (d *Driver) List(ctx context.Context, p string) ([]driver.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k, err := d.kindOf(ctx, p)
	if err != nil {
		return nil, driver.Errorf("list", p, err)
	}
	switch k {
	case kindNone:
		return nil, driver.Errorf("list", p, driver.ErrNotFound)
	case kindFile:
		return nil, driver.Errorf("list", p, driver.ErrNotDirectory)
	}

	prefix := d.dirPrefix(p)
	seen := make(map[string]driver.Entry)

	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(d.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, driver.Errorf("list", p, err)
		}

		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			seen[name] = driver.Entry{Name: name, Path: driver.Join(p, name), IsDir: true}
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				// The directory's own marker.
				continue
			}
			if _, isDir := seen[name]; isDir {
				continue
			}
			seen[name] = driver.Entry{Name: name, Path: driver.Join(p, name)}
		}
	}

	entries := make([]driver.Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Remove deletes the object of p, or every object beneath the directory p
// in batches of maxDeleteBatch.
func (d *Driver) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if driver.Clean(p) == "/" {
		return driver.Errorf("remove", p, driver.ErrInvalidName)
	}

	k, err := d.kindOf(ctx, p)
	if err != nil {
		return driver.Errorf("remove", p, err)
	}

	switch k {
	case kindNone:
		return driver.Errorf("remove", p, driver.ErrNotFound)
	case kindFile:
		_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(d.objectKey(p)),
		})
		if err != nil {
			return driver.Errorf("remove", p, fmt.Errorf("failed to delete object: %w", err))
		}
		return nil
	}

	keys, err := d.keysUnder(ctx, d.dirPrefix(p))
	if err != nil {
		return driver.Errorf("remove", p, err)
	}
	if err := d.deleteBatch(ctx, keys); err != nil {
		return driver.Errorf("remove", p, err)
	}
	logger.Debug("S3 driver removed %s (%d objects)", p, len(keys))
	return nil
}

func (d *Driver) keysUnder(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// deleteBatch removes keys in chunks of maxDeleteBatch. The first chunk
// that reports a per-key failure aborts the removal.
func (d *Driver) deleteBatch(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("failed to delete %s: %s", aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	return nil
}

// Exists reports whether p is a file object or a directory.
func (d *Driver) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k, err := d.kindOf(ctx, p)
	if err != nil {
		return false, driver.Errorf("stat", p, err)
	}
	return k != kindNone, nil
}

// IsDirectory reports whether p is a directory. A missing p fails with
// driver.ErrNotFound.
func (d *Driver) IsDirectory(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k, err := d.kindOf(ctx, p)
	if err != nil {
		return false, driver.Errorf("stat", p, err)
	}
	if k == kindNone {
		return false, driver.Errorf("stat", p, driver.ErrNotFound)
	}
	return k == kindDir, nil
}

// ModificationTime returns LastModified of the file object, or of the
// directory marker. Directories without a marker report the zero time.
func (d *Driver) ModificationTime(ctx context.Context, p string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	if driver.Clean(p) == "/" {
		return time.Time{}, nil
	}

	out, err := d.head(ctx, d.objectKey(p))
	if err != nil {
		return time.Time{}, driver.Errorf("stat", p, err)
	}
	if out == nil {
		out, err = d.head(ctx, d.dirPrefix(p))
		if err != nil {
			return time.Time{}, driver.Errorf("stat", p, err)
		}
	}
	if out == nil {
		k, err := d.kindOf(ctx, p)
		if err != nil {
			return time.Time{}, driver.Errorf("stat", p, err)
		}
		if k == kindNone {
			return time.Time{}, driver.Errorf("stat", p, driver.ErrNotFound)
		}
		return time.Time{}, nil
	}
	return aws.ToTime(out.LastModified), nil
}

var _ driver.Driver = (*Driver)(nil)
