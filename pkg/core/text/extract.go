// Package text renders a filing's HTML into plain text with canonical
// section sentinels. Output is deterministic: identical input bytes always
// produce identical output bytes.
package text

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// DefaultCellDelimiter separates flattened table cells.
const DefaultCellDelimiter = "   "

// Extractor converts filing HTML to sectioned plain text.
type Extractor struct {
	// CellDelimiter joins table cells within a row. Empty means the default.
	CellDelimiter string
}

var wsCollapse = regexp.MustCompile(`\s+`)

// Extract renders the document. formType selects the section vocabulary
// (10-K item headings differ from 10-Q); unknown types get no sentinels
// beyond the Part markers.
func (e *Extractor) Extract(data []byte, formType string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", errs.Wrap(errs.KindParse, err)
	}
	doc.Find("script, style, noscript").Remove()

	delim := e.CellDelimiter
	if delim == "" {
		delim = DefaultCellDelimiter
	}

	var blocks []string
	var cur strings.Builder
	flush := func() {
		if p := collapse(cur.String()); p != "" {
			blocks = append(blocks, p)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			case "table":
				flush()
				if t := renderTable(n, delim); t != "" {
					blocks = append(blocks, t)
				}
				return
			}
			block := isBlockTag(n.Data)
			if block {
				flush()
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if block {
				flush()
			}
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	for _, root := range doc.Selection.Nodes {
		walk(root)
	}
	flush()

	tagged := tagSections(blocks, formType)
	return strings.Join(tagged, "\n\n") + "\n", nil
}

func collapse(s string) string {
	return strings.TrimSpace(wsCollapse.ReplaceAllString(s, " "))
}

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "blockquote": true, "pre": true,
	"header": true, "footer": true, "hr": true, "br": true,
}

func isBlockTag(tag string) bool { return blockTags[tag] }

// renderTable flattens a table row by row, cells joined by delim.
// Nested tables are rendered inline as part of the enclosing cell.
func renderTable(n *html.Node, delim string) string {
	var rows []string
	var walkRows func(n *html.Node)
	walkRows = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			var walkCells func(n *html.Node)
			walkCells = func(n *html.Node) {
				if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
					if c := collapse(nodeText(n)); c != "" {
						cells = append(cells, c)
					}
					return
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walkCells(c)
				}
			}
			walkCells(n)
			if len(cells) > 0 {
				rows = append(rows, strings.Join(cells, delim))
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkRows(c)
		}
	}
	walkRows(n)
	return strings.Join(rows, "\n")
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
