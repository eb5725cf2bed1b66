package insight

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"

	"github.com/ConfabulousDev/confab-insights/internal/sampler"
)

const (
	maxListItems = 5
	maxTags      = 8
	maxTextChars = 500
	maxTagChars  = 40
)

// rawAnalysis accepts whatever the provider sends for outcome before
// normalization.
type rawAnalysis struct {
	Summary        string   `json:"summary"`
	Outcome        string   `json:"outcome"`
	WhatWentWell   []string `json:"what_went_well"`
	AreasToImprove []string `json:"areas_to_improve"`
	TipsForFuture  []string `json:"tips_for_future"`
	Tags           []string `json:"tags"`
}

// parseResponse extracts the JSON object from content, repairing it when
// it is almost-JSON. Every string goes through clean before it is bounded
// and tags are deduplicated last, so the stored set has no repeats.
func parseResponse(content string, clean func(string) string) (Analysis, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return Analysis{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	body := content[start : end+1]

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(body)
		if repairErr != nil {
			return Analysis{}, fmt.Errorf("%w: %v (repair: %v)", ErrMalformedResponse, err, repairErr)
		}
		raw = rawAnalysis{}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return Analysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}

	if strings.TrimSpace(raw.Summary) == "" {
		return Analysis{}, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}

	return Analysis{
		Summary:        clipText(strings.TrimSpace(clean(raw.Summary))),
		Outcome:        NormalizeOutcome(raw.Outcome),
		WhatWentWell:   boundList(raw.WhatWentWell, clean),
		AreasToImprove: boundList(raw.AreasToImprove, clean),
		TipsForFuture:  boundList(raw.TipsForFuture, clean),
		Tags:           normalizeTags(raw.Tags, clean),
	}, nil
}

func clipText(s string) string {
	return sampler.TruncateWords(s, maxTextChars, "...")
}

func boundList(items []string, clean func(string) string) []string {
	out := make([]string, 0, maxListItems)
	for _, item := range items {
		item = strings.TrimSpace(clean(item))
		if item == "" {
			continue
		}
		out = append(out, clipText(item))
		if len(out) == maxListItems {
			break
		}
	}
	return out
}

// normalizeTags cleans, lowercases, hyphenates inner whitespace and clips
// each tag, then dedupes on the final form.
func normalizeTags(tags []string, clean func(string) string) []string {
	out := make([]string, 0, maxTags)
	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(strings.ToLower(clean(tag))), "-")
		tag = strings.TrimRight(clipTag(tag), "-")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// clipTag cuts a hyphenated tag to maxTagChars bytes on a rune boundary
func clipTag(tag string) string {
	if len(tag) <= maxTagChars {
		return tag
	}
	n := maxTagChars
	for n > 0 && !utf8.RuneStart(tag[n]) {
		n--
	}
	return tag[:n]
}
