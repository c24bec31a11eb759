// Package storage provides the artifact sinks: a local filesystem sink for
// skip-upload runs, a GCS sink for production, and metadata recorders
// backed by Firestore or Postgres.
package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/peakyragnar/NativeLLM/pkg/core/fiscal"
)

// Artifact kinds under a filing's canonical directory.
const (
	KindText = "text"
	KindLLM  = "llm"
)

// Sink is where artifacts land. Put must be atomic on success: readers
// never observe a partially written artifact.
type Sink interface {
	Put(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	RecordMetadata(ctx context.Context, filingID string, attrs map[string]any) error
}

// ArtifactPath builds the canonical path
// companies/{TICKER}/{FILING_TYPE}/{YYYY}/{PERIOD}/{text|llm}.txt.
func ArtifactPath(ticker, formType string, attr fiscal.Attribution, kind string) string {
	return fmt.Sprintf("companies/%s/%s/%d/%s/%s.txt",
		ticker, formType, attr.Year, attr.PathSegment(), kind)
}

// FilingID keys metadata records: {ticker}-{filing_type}-{fiscal_year}-{fiscal_period}.
func FilingID(ticker, formType string, attr fiscal.Attribution) string {
	return ticker + "-" + formType + "-" + strconv.Itoa(attr.Year) + "-" + attr.Period
}
