package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// LocalSink writes artifacts under a base directory. Commits go through a
// temp file and an atomic rename so a failed or cancelled write never
// leaves a readable partial artifact.
type LocalSink struct {
	base string
}

func NewLocalSink(base string) (*LocalSink, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindConfig, err)
	}
	return &LocalSink{base: base}, nil
}

func (s *LocalSink) Put(_ context.Context, path string, data []byte) error {
	full := filepath.Join(s.base, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errs.Wrap(errs.KindSerialize, err)
	}

	tmp := full + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.KindSerialize, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindSerialize, err)
	}
	return nil
}

func (s *LocalSink) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.base, filepath.FromSlash(path)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errs.Wrap(errs.KindSerialize, err)
}

// RecordMetadata writes one JSON document per filing under metadata/,
// committed with the same rename pattern as artifacts.
func (s *LocalSink) RecordMetadata(ctx context.Context, filingID string, attrs map[string]any) error {
	data, err := json.MarshalIndent(attrs, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindSerialize, err)
	}
	return s.Put(ctx, "metadata/"+filingID+".json", data)
}
