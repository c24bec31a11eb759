package text

import (
	"regexp"
)

// sectionPattern pairs a heading regex with its canonical section name.
type sectionPattern struct {
	re   *regexp.Regexp
	name string
}

func pat(expr, name string) sectionPattern {
	return sectionPattern{re: regexp.MustCompile(`(?i)^` + expr), name: name}
}

// Heading sweeps match at the start of a paragraph only, and only when the
// paragraph is short enough to plausibly be a heading rather than a
// cross-reference buried in prose.
const maxHeadingLen = 120

var partPatterns = []sectionPattern{
	pat(`PART\s+I\b`, "PART_I"),
	pat(`PART\s+II\b`, "PART_II"),
	pat(`PART\s+III\b`, "PART_III"),
	pat(`PART\s+IV\b`, "PART_IV"),
}

var annualPatterns = []sectionPattern{
	pat(`Item\s+1\.?\s*Business`, "ITEM_1_BUSINESS"),
	pat(`Item\s+1A\.?\s*Risk\s+Factors`, "ITEM_1A_RISK_FACTORS"),
	pat(`Item\s+1B\.?\s*Unresolved\s+Staff\s+Comments`, "ITEM_1B_UNRESOLVED_STAFF_COMMENTS"),
	pat(`Item\s+2\.?\s*Properties`, "ITEM_2_PROPERTIES"),
	pat(`Item\s+3\.?\s*Legal\s+Proceedings`, "ITEM_3_LEGAL_PROCEEDINGS"),
	pat(`Item\s+4\.?\s*Mine\s+Safety\s+Disclosures`, "ITEM_4_MINE_SAFETY_DISCLOSURES"),
	pat(`Item\s+5\.?\s*Market\s+for\s+Registrant`, "ITEM_5_MARKET"),
	pat(`Item\s+6\.?\s*Selected\s+Financial\s+Data`, "ITEM_6_SELECTED_FINANCIAL_DATA"),
	pat(`Item\s+7\.?\s*Management.{0,40}Discussion`, "ITEM_7_MD_AND_A"),
	pat(`Item\s+7A\.?\s*Quantitative\s+and\s+Qualitative`, "ITEM_7A_MARKET_RISK"),
	pat(`Item\s+8\.?\s*Financial\s+Statements`, "ITEM_8_FINANCIAL_STATEMENTS"),
	pat(`Item\s+9\.?\s*Changes\s+in\s+and\s+Disagreements`, "ITEM_9_DISAGREEMENTS"),
	pat(`Item\s+9A\.?\s*Controls\s+and\s+Procedures`, "ITEM_9A_CONTROLS"),
	pat(`Item\s+9B\.?\s*Other\s+Information`, "ITEM_9B_OTHER_INFORMATION"),
	pat(`Item\s+10\.?\s*Directors`, "ITEM_10_DIRECTORS"),
	pat(`Item\s+11\.?\s*Executive\s+Compensation`, "ITEM_11_EXECUTIVE_COMPENSATION"),
	pat(`Item\s+12\.?\s*Security\s+Ownership`, "ITEM_12_SECURITY_OWNERSHIP"),
	pat(`Item\s+13\.?\s*Certain\s+Relationships`, "ITEM_13_RELATIONSHIPS"),
	pat(`Item\s+14\.?\s*Principal\s+Accountant\s+Fees`, "ITEM_14_ACCOUNTANT_FEES"),
	pat(`Item\s+15\.?\s*Exhibits`, "ITEM_15_EXHIBITS"),
	pat(`Risk\s+Factors\s*$`, "RISK_FACTORS"),
	pat(`Management.{0,3}s\s+Discussion\s+and\s+Analysis`, "MD_AND_A"),
}

var quarterlyPatterns = []sectionPattern{
	pat(`Item\s+1\.?\s*Financial\s+Statements`, "ITEM_1_FINANCIAL_STATEMENTS"),
	pat(`Item\s+2\.?\s*Management.{0,40}Discussion`, "ITEM_2_MD_AND_A"),
	pat(`Item\s+3\.?\s*Quantitative\s+and\s+Qualitative`, "ITEM_3_MARKET_RISK"),
	pat(`Item\s+4\.?\s*Controls\s+and\s+Procedures`, "ITEM_4_CONTROLS"),
	pat(`Item\s+1\.?\s*Legal\s+Proceedings`, "ITEM_1_LEGAL_PROCEEDINGS"),
	pat(`Item\s+1A\.?\s*Risk\s+Factors`, "ITEM_1A_RISK_FACTORS"),
	pat(`Item\s+2\.?\s*Unregistered\s+Sales`, "ITEM_2_UNREGISTERED_SALES"),
	pat(`Item\s+3\.?\s*Defaults`, "ITEM_3_DEFAULTS"),
	pat(`Item\s+4\.?\s*Mine\s+Safety\s+Disclosures`, "ITEM_4_MINE_SAFETY"),
	pat(`Item\s+5\.?\s*Other\s+Information`, "ITEM_5_OTHER_INFORMATION"),
	pat(`Item\s+6\.?\s*Exhibits`, "ITEM_6_EXHIBITS"),
}

// patternsFor selects the heading vocabulary by form type. 20-F narrative
// sections use the annual vocabulary; they share Part and Item structure.
func patternsFor(formType string) []sectionPattern {
	switch formType {
	case "10-Q":
		return append(quarterlyPatterns, partPatterns...)
	case "10-K", "20-F":
		return append(annualPatterns, partPatterns...)
	default:
		return partPatterns
	}
}

// tagSections inserts a "@SECTION: <name>" sentinel before each paragraph
// recognized as a heading. Table-of-contents entries match too; consumers
// treat a repeated sentinel as a refinement, the last occurrence marking
// the body heading.
func tagSections(blocks []string, formType string) []string {
	patterns := patternsFor(formType)

	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if len(b) <= maxHeadingLen {
			for _, p := range patterns {
				if p.re.MatchString(b) {
					out = append(out, "@SECTION: "+p.name)
					break
				}
			}
		}
		out = append(out, b)
	}
	return out
}
