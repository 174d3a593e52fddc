package seoul

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/youthdesk/policy-rag/internal/core/domain"
)

// Listing rows carry the policy id in an onclick handler instead of an href.
var goViewPattern = regexp.MustCompile(`goView\('([^']+)'\)`)

func extractPolicyIDs(doc *goquery.Document) []string {
	var ids []string
	seen := make(map[string]bool)

	doc.Find("a[onclick*='goView']").Each(func(_ int, s *goquery.Selection) {
		onclick, ok := s.Attr("onclick")
		if !ok {
			return
		}
		m := goViewPattern.FindStringSubmatch(onclick)
		if m == nil {
			return
		}
		id := strings.TrimSpace(m[1])
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	})
	return ids
}

// parsePolicyDetail maps the detail page's th/td form tables onto a record.
// The portal renders each section (사업개요, 신청자격, 신청방법) as its own
// table, so labels are matched globally rather than per table.
func parsePolicyDetail(doc *goquery.Document, policyID, detailURL string) *domain.PolicyRecord {
	rec := &domain.PolicyRecord{
		ID:  policyID,
		URL: detailURL,
	}

	rec.Title = cleanText(doc.Find(".policy-view h3").First().Text())
	if rec.Title == "" {
		rec.Title = cleanText(doc.Find("h3").First().Text())
	}

	var bodyParts []string

	doc.Find("table.form-table tr").Each(func(_ int, row *goquery.Selection) {
		label := cleanText(row.Find("th").First().Text())
		value := cleanText(row.Find("td").First().Text())
		if label == "" || value == "" {
			return
		}

		switch {
		case strings.Contains(label, "지원대상") || strings.Contains(label, "신청자격"):
			if rec.Target == "" {
				rec.Target = value
			} else {
				rec.Target += "; " + value
			}
		case strings.Contains(label, "사업내용") || strings.Contains(label, "지원내용"):
			bodyParts = append(bodyParts, value)
		case strings.Contains(label, "신청기간") || strings.Contains(label, "사업기간"):
			start, end := splitPeriod(value)
			rec.ApplyStart, rec.ApplyEnd = start, end
		case strings.Contains(label, "지원규모"):
			rec.SupportScale = value
		case strings.Contains(label, "주관") || strings.Contains(label, "운영기관"):
			rec.Agency = value
		case strings.Contains(label, "신청사이트") || strings.Contains(label, "신청방법"):
			if site := firstHref(row); site != "" {
				rec.ApplicationSite = site
			} else if rec.ApplicationSite == "" {
				rec.ApplicationSite = value
			}
		default:
			bodyParts = append(bodyParts, label+": "+value)
		}
	})

	rec.Body = strings.Join(bodyParts, "\n")
	return rec
}

// splitPeriod splits "2026-01-01 ~ 2026-12-31" style ranges. A value without
// a tilde is treated as the start date of an open-ended period.
func splitPeriod(value string) (string, string) {
	parts := strings.SplitN(value, "~", 2)
	if len(parts) == 1 {
		return cleanText(parts[0]), ""
	}
	return cleanText(parts[0]), cleanText(parts[1])
}

func firstHref(row *goquery.Selection) string {
	href, ok := row.Find("td a[href]").First().Attr("href")
	if !ok {
		return ""
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	return href
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
