package storage

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// GCSSink writes artifacts to a Cloud Storage bucket and filing metadata to
// a Firestore collection. GCS object creation is atomic: the object becomes
// visible only when the writer closes cleanly, which satisfies the
// write-then-rename contract without a temp object.
type GCSSink struct {
	bucket     *storage.BucketHandle
	metadata   *firestore.CollectionRef
	gcsClient  *storage.Client
	fsClient   *firestore.Client
	collection string
}

// GCSConfig configures the cloud sink. CredentialsFile may be empty to use
// application default credentials.
type GCSConfig struct {
	Bucket          string
	ProjectID       string
	Collection      string // Firestore collection for filing metadata
	CredentialsFile string
}

func NewGCSSink(ctx context.Context, cfg GCSConfig) (*GCSSink, error) {
	if cfg.Bucket == "" {
		return nil, errs.New(errs.KindConfig, "sink bucket name is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "filings"
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	gcsClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err)
	}
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		gcsClient.Close()
		return nil, errs.Wrap(errs.KindConfig, err)
	}

	return &GCSSink{
		bucket:     gcsClient.Bucket(cfg.Bucket),
		metadata:   fsClient.Collection(cfg.Collection),
		gcsClient:  gcsClient,
		fsClient:   fsClient,
		collection: cfg.Collection,
	}, nil
}

func (s *GCSSink) Put(ctx context.Context, path string, data []byte) error {
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errs.Wrap(errs.KindSerialize, err)
	}
	if err := w.Close(); err != nil {
		return errs.Wrap(errs.KindSerialize, err)
	}
	return nil
}

func (s *GCSSink) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.bucket.Object(path).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, errs.Wrap(errs.KindFetch, err)
}

// RecordMetadata upserts the filing document, merging attrs into any
// existing record.
func (s *GCSSink) RecordMetadata(ctx context.Context, filingID string, attrs map[string]any) error {
	_, err := s.metadata.Doc(filingID).Set(ctx, attrs, firestore.MergeAll)
	if err != nil {
		return errs.Wrap(errs.KindSerialize, err)
	}
	return nil
}

func (s *GCSSink) Close() error {
	gcsErr := s.gcsClient.Close()
	fsErr := s.fsClient.Close()
	if gcsErr != nil {
		return gcsErr
	}
	return fsErr
}
