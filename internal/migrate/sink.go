package migrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/afero"
)

// ReportSink persists a finalized report.
type ReportSink interface {
	Save(ctx context.Context, r *Report) error
}

// JSONPath returns the machine-readable sibling of a markdown report path:
// "out/report.md" → "out/report.json". Paths without a .md suffix get
// ".json" appended.
func JSONPath(mdPath string) string {
	if strings.HasSuffix(mdPath, ".md") {
		return strings.TrimSuffix(mdPath, ".md") + ".json"
	}
	return mdPath + ".json"
}

// FileSink writes the markdown report to Path and the JSON report next to it.
type FileSink struct {
	Fs   afero.Fs
	Path string
}

// NewFileSink returns a sink on the OS filesystem.
func NewFileSink(path string) FileSink {
	return FileSink{Fs: afero.NewOsFs(), Path: path}
}

func (s FileSink) Save(_ context.Context, r *Report) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := s.Fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := afero.WriteFile(s.Fs, s.Path, []byte(r.Markdown()), 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", s.Path, err)
	}
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	jsonPath := JSONPath(s.Path)
	if err := afero.WriteFile(s.Fs, jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", jsonPath, err)
	}
	return nil
}

// ObjectStoreConfig configures an S3-compatible object store.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// ObjectSink uploads reports (and backup bundles) to an S3-compatible bucket.
type ObjectSink struct {
	client *minio.Client
	bucket string
	prefix string
	label  string
}

// NewObjectSink connects to the object store and checks the bucket exists.
// label names the kind of run ("migration", "import") in object keys.
func NewObjectSink(ctx context.Context, cfg ObjectStoreConfig, label string) (*ObjectSink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("object store endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}
	return &ObjectSink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, label: label}, nil
}

// ObjectKey builds "<prefix>/<label>-<run>.<ext>".
func ObjectKey(prefix, label, run, ext string) string {
	name := slug.Make(label + " " + run)
	if name == "" {
		name = "report"
	}
	return path.Join(prefix, name+ext)
}

func (s *ObjectSink) Save(ctx context.Context, r *Report) error {
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := s.Put(ctx, ObjectKey(s.prefix, s.label, r.RunID, ".md"), []byte(r.Markdown()), "text/markdown"); err != nil {
		return err
	}
	return s.Put(ctx, ObjectKey(s.prefix, s.label, r.RunID, ".json"), data, "application/json")
}

// Put uploads one object.
func (s *ObjectSink) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// Sinks fans a report out to several sinks, returning every failure.
type Sinks []ReportSink

func (ss Sinks) Save(ctx context.Context, r *Report) error {
	var errs []error
	for _, s := range ss {
		if err := s.Save(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
