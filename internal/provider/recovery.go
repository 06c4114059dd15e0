package provider

import (
	"encoding/json"
	"strings"
)

// maxExtractDepth bounds the tree walk over provider payloads.
const maxExtractDepth = 4

// ExtractRecoveryScore digs a plausible 0-100 recovery score out of a
// payload whose shape is not uniform across response variants. It walks the
// object graph up to maxExtractDepth levels, collects numeric fields whose
// key contains "recovery" (case-insensitive) or is exactly "score",
// normalizes fractional values in [0,1] to percentages and discards anything
// outside [0,100]. When multiple candidates survive, the maximum wins; this
// tie-break is a heuristic inherited from observed provider behavior, not a
// contract. ok=false means "unknown", never zero.
func ExtractRecoveryScore(payload json.RawMessage) (float64, bool) {
	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		return 0, false
	}

	var candidates []float64
	collectScoreCandidates(root, 0, &candidates)

	if len(candidates) == 0 {
		return 0, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c > best {
			best = c
		}
	}
	return best, true
}

func collectScoreCandidates(node any, depth int, out *[]float64) {
	if depth > maxExtractDepth {
		return
	}

	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			if num, ok := child.(float64); ok && scoreKey(key) {
				if norm, ok := normalizeScore(num); ok {
					*out = append(*out, norm)
				}
				continue
			}
			collectScoreCandidates(child, depth+1, out)
		}
	case []any:
		for _, child := range v {
			collectScoreCandidates(child, depth+1, out)
		}
	}
}

func scoreKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "recovery") || key == "score"
}

func normalizeScore(v float64) (float64, bool) {
	if v >= 0 && v <= 1 {
		v *= 100
	}
	if v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}
