package edgar

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// FilingDocuments holds the URLs discovered for one accession.
type FilingDocuments struct {
	PrimaryHTMLURL string
	InstanceURL    string // empty for text-only filings
	SchemaURL      string
	LinkbaseURLs   []string
}

// accessionIndex mirrors the index.json listing of an accession directory.
type accessionIndex struct {
	Directory struct {
		Items []struct {
			Name string `json:"name"`
			Type string `json:"type"`
			Size string `json:"size"`
		} `json:"item"`
	} `json:"directory"`
}

// filingSummary is the subset of FilingSummary.xml needed to disambiguate
// extension documents.
type filingSummary struct {
	InputFiles struct {
		Files []string `xml:"File"`
	} `xml:"InputFiles"`
}

// DiscoverDocuments inspects the accession's file listing and resolves the
// primary HTML document, the XBRL instance (if any), and schema/linkbase URLs.
func (c *Client) DiscoverDocuments(ctx context.Context, ref FilingRef) (*FilingDocuments, error) {
	body, err := c.fetcher.Get(ctx, archivePath(ref.CIK, ref.AccessionNumber, "index.json"))
	if err != nil {
		return nil, err
	}
	var idx accessionIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, errs.Wrap(errs.KindParse, fmt.Errorf("accession index %s: %w", ref.AccessionNumber, err))
	}

	docs := &FilingDocuments{}
	var instanceCandidates []string
	var largestHTML string
	var largestSize int64

	for _, item := range idx.Directory.Items {
		name := item.Name
		lower := strings.ToLower(name)
		switch {
		case strings.HasSuffix(lower, ".xsd"):
			if docs.SchemaURL == "" {
				docs.SchemaURL = archivePath(ref.CIK, ref.AccessionNumber, name)
			}
		case isLinkbase(lower):
			docs.LinkbaseURLs = append(docs.LinkbaseURLs, archivePath(ref.CIK, ref.AccessionNumber, name))
		case strings.HasSuffix(lower, "_htm.xml"):
			// Extracted instances sort ahead of plain .xml candidates.
			instanceCandidates = append([]string{name}, instanceCandidates...)
		case strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".xbrl"):
			if !isAuxiliaryXML(lower) {
				instanceCandidates = append(instanceCandidates, name)
			}
		case strings.HasSuffix(lower, ".htm") || strings.HasSuffix(lower, ".html"):
			if isExhibit(lower) || isRenderedReport(lower) {
				continue
			}
			if name == ref.PrimaryDocument {
				docs.PrimaryHTMLURL = archivePath(ref.CIK, ref.AccessionNumber, name)
			}
			if size, _ := strconv.ParseInt(item.Size, 10, 64); size > largestSize {
				largestSize = size
				largestHTML = name
			}
		}
	}

	if docs.PrimaryHTMLURL == "" && largestHTML != "" {
		docs.PrimaryHTMLURL = archivePath(ref.CIK, ref.AccessionNumber, largestHTML)
	}
	if docs.PrimaryHTMLURL == "" {
		return nil, errs.New(errs.KindNotFound, "no HTML document in accession %s", ref.AccessionNumber)
	}

	if len(instanceCandidates) > 0 {
		name, err := c.pickInstance(ctx, ref, instanceCandidates)
		if err != nil {
			return nil, err
		}
		docs.InstanceURL = archivePath(ref.CIK, ref.AccessionNumber, name)
	}

	c.logger.Debug("discovered documents",
		zap.String("accession", ref.AccessionNumber),
		zap.String("primary", docs.PrimaryHTMLURL),
		zap.String("instance", docs.InstanceURL))
	return docs, nil
}

// pickInstance chooses among multiple XBRL candidates. FilingSummary.xml
// names the filer's input documents; a candidate listed there wins. Failing
// that, a filename carrying the accession number wins, then the first one.
func (c *Client) pickInstance(ctx context.Context, ref FilingRef, candidates []string) (string, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	if body, err := c.fetcher.Get(ctx, archivePath(ref.CIK, ref.AccessionNumber, "FilingSummary.xml")); err == nil {
		var summary filingSummary
		if xml.Unmarshal(body, &summary) == nil {
			listed := make(map[string]bool, len(summary.InputFiles.Files))
			for _, f := range summary.InputFiles.Files {
				listed[strings.ToLower(f)] = true
			}
			for _, cand := range candidates {
				if listed[strings.ToLower(cand)] {
					return cand, nil
				}
			}
		}
	}

	accFlat := strings.ReplaceAll(ref.AccessionNumber, "-", "")
	for _, cand := range candidates {
		if strings.Contains(cand, accFlat) {
			return cand, nil
		}
	}
	return candidates[0], nil
}

// isAuxiliaryXML filters out linkbase and EDGAR housekeeping files that share
// the .xml suffix with instances.
func isAuxiliaryXML(name string) bool {
	for _, suffix := range []string{"_cal.xml", "_def.xml", "_pre.xml", "_lab.xml"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return name == "filingsummary.xml" || strings.HasPrefix(name, "index") || name == "metalinks.json"
}

func isLinkbase(name string) bool {
	for _, suffix := range []string{"_cal.xml", "_def.xml", "_pre.xml", "_lab.xml"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func isExhibit(name string) bool {
	return strings.HasPrefix(name, "ex") || strings.Contains(name, "exhibit")
}

// isRenderedReport matches the viewer's pre-rendered R1.htm, R2.htm pages.
func isRenderedReport(name string) bool {
	base := strings.TrimSuffix(strings.TrimSuffix(name, ".html"), ".htm")
	if len(base) < 2 || base[0] != 'r' {
		return false
	}
	_, err := strconv.Atoi(base[1:])
	return err == nil
}
