package vision

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceOpenRe     = regexp.MustCompile("^```(?:json)?\\s*\\n?")
	fenceCloseRe    = regexp.MustCompile("```\\s*$")
	trailingObjRe   = regexp.MustCompile(`,\s*}`)
	trailingArrayRe = regexp.MustCompile(`,\s*]`)
)

// ExtractJSON pulls the outermost JSON object out of a model reply that may
// be wrapped in markdown fences or prose, tolerating trailing commas.
func ExtractJSON(text string) ([]byte, bool) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil, false
	}
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpenRe.ReplaceAllString(cleaned, "")
		cleaned = fenceCloseRe.ReplaceAllString(cleaned, "")
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}") + 1
	if start < 0 || end <= start {
		return nil, false
	}
	raw := cleaned[start:end]
	candidates := []string{
		raw,
		trailingObjRe.ReplaceAllString(raw, "}"),
		trailingArrayRe.ReplaceAllString(trailingObjRe.ReplaceAllString(raw, "}"), "]"),
	}
	for _, c := range candidates {
		if json.Valid([]byte(c)) {
			return []byte(c), true
		}
	}
	return nil, false
}
