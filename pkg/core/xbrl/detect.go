package xbrl

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

var inlineMarkers = [][]byte{
	[]byte("http://www.xbrl.org/2013/inlineXBRL"),
	[]byte("<ix:"),
	[]byte("<IX:"),
}

// Detect returns the ordered list of fact-source strategies for a filing.
// A discovered standalone instance wins; otherwise inline markers in the
// primary document select iXBRL; text-only is always the final fallback.
func Detect(primaryHTML []byte, hasInstance bool) []Source {
	if hasInstance {
		if containsInlineMarkers(primaryHTML) {
			return []Source{SourceTraditional, SourceInline, SourceTextOnly}
		}
		return []Source{SourceTraditional, SourceTextOnly}
	}
	if containsInlineMarkers(primaryHTML) {
		return []Source{SourceInline, SourceTextOnly}
	}
	return []Source{SourceTextOnly}
}

func containsInlineMarkers(html []byte) bool {
	for _, m := range inlineMarkers {
		if bytes.Contains(html, m) {
			return true
		}
	}
	return false
}

// ParseWithFallback tries each strategy in order and returns the first
// table produced. Text-only always succeeds with an empty table, so a nil
// error with zero facts is a valid result.
func ParseWithFallback(strategies []Source, instance, primaryHTML []byte) (*FactTable, error) {
	logger := zap.L().Named("xbrl")
	var lastErr error
	for _, s := range strategies {
		switch s {
		case SourceTraditional:
			if len(instance) == 0 {
				continue
			}
			table, err := Parse(instance)
			if err == nil {
				return table, nil
			}
			lastErr = err
			logger.Warn("traditional parse failed, falling back", zap.Error(err))
		case SourceInline:
			table, err := ExtractInline(primaryHTML)
			if err == nil {
				return table, nil
			}
			lastErr = err
			logger.Warn("inline extraction failed, falling back", zap.Error(err))
		case SourceTextOnly:
			return NewFactTable(SourceTextOnly), nil
		}
	}
	if lastErr == nil {
		lastErr = errs.New(errs.KindParse, "no parsing strategy available")
	}
	return nil, lastErr
}
