package market

import (
	"encoding/csv"
	"strings"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// fieldSep separates the sections of a market data blob.
const fieldSep = "␟"

// ParseDetails splits a market data blob. The first section is the
// description, optionally prefixed with "<title>;". Later sections are
// either quoted outcome labels or a "tags;;sources" section where tags are
// comma separated and sources are url;label pairs, optionally bracketed.
// Blobs without separators are all description.
func ParseDetails(m domain.Market) domain.MarketDetails {
	parts := strings.Split(m.MarketData, fieldSep)
	desc := strings.TrimSpace(parts[0])
	desc = strings.TrimSpace(strings.TrimPrefix(desc, m.Title+";"))

	d := domain.MarketDetails{Description: desc}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if tags, sources, ok := strings.Cut(p, ";;"); ok {
			d.Tags = append(d.Tags, splitTags(tags)...)
			d.Sources = append(d.Sources, splitSources(sources)...)
			continue
		}
		d.Outcomes = append(d.Outcomes, splitOutcomes(p)...)
	}
	if len(d.Outcomes) == 0 {
		d.Outcomes = []string{m.OutcomeA, m.OutcomeB}
	}
	return d
}

func splitOutcomes(s string) []string {
	r := csv.NewReader(strings.NewReader(s))
	r.LazyQuotes = true
	rec, err := r.Read()
	if err != nil {
		return []string{strings.Trim(s, `"`)}
	}
	out := make([]string, 0, len(rec))
	for _, v := range rec {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitSources(s string) []domain.MarketSource {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	fields := strings.Split(s, ";")

	var out []domain.MarketSource
	for i := 0; i < len(fields); i += 2 {
		url := strings.TrimSpace(fields[i])
		if url == "" {
			continue
		}
		src := domain.MarketSource{URL: url, Label: "View Source"}
		if i+1 < len(fields) {
			if label := strings.TrimSpace(fields[i+1]); label != "" {
				src.Label = label
			}
		}
		out = append(out, src)
	}
	return out
}
