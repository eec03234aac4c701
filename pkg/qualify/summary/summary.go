// Package summary aggregates the final dataset per source domain.
package summary

import (
	"fmt"
	"sort"

	"github.com/cognicore/qualify/pkg/qualify/record"
)

// Headers are the published column titles of the summary table.
var Headers = []string{
	"Domain",
	"Total number of articles",
	"Does the domain have any paywalled contents?",
	"Number of paywalled articles",
	"percentage of complete articles without paywalls",
}

// Row is the summary of one domain.
type Row struct {
	Domain       string `json:"domain"`
	Total        int    `json:"total"`
	HasPaywalled string `json:"has_paywalled"`
	Paywalled    int    `json:"paywalled"`
	PctFree      string `json:"pct_free"`
}

// Cells returns the row in Headers order.
func (r Row) Cells() []string {
	return []string{r.Domain, fmt.Sprintf("%d", r.Total), r.HasPaywalled, fmt.Sprintf("%d", r.Paywalled), r.PctFree}
}

// Summarize groups normalized records by domain. Rows are sorted by domain.
// Paywall values must already be coerced to "1" or "0".
func Summarize(records []record.Record) []Row {
	type counts struct{ total, paywalled int }
	byDomain := make(map[string]*counts)
	for _, r := range records {
		c, ok := byDomain[r.Domain]
		if !ok {
			c = &counts{}
			byDomain[r.Domain] = c
		}
		c.total++
		if r.Paywall == "1" {
			c.paywalled++
		}
	}

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	rows := make([]Row, 0, len(domains))
	for _, d := range domains {
		c := byDomain[d]
		has := "No"
		if c.paywalled > 0 {
			has = "Yes"
		}
		free := float64(c.total-c.paywalled) / float64(c.total) * 100
		rows = append(rows, Row{
			Domain:       d,
			Total:        c.total,
			HasPaywalled: has,
			Paywalled:    c.paywalled,
			PctFree:      fmt.Sprintf("%.2f%%", free),
		})
	}
	return rows
}
