// Package sources implements the knowledge source adapters that look up
// artists on Wikidata, MusicBrainz and Last.fm and normalize what they find
// into classification signals.
package sources

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/logging"
)

// Package-level logger shared by the source adapters
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "sources.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "sources", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize sources file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "sources")
		closeLogger = func() error { return nil }
	}
}

// tagRule maps a folksonomy tag fragment to a label. Rules are checked in
// order, most specific first, against the lowercased tag.
type tagRule struct {
	fragment string
	label    classify.Label
	// bandHint marks tags that describe a band as virtual rather than the
	// act itself, feeding the band policy.
	bandHint bool
}

var tagRules = []tagRule{
	{fragment: "virtual band", label: classify.LabelBand, bandHint: true},
	{fragment: "fictional band", label: classify.LabelBand, bandHint: true},
	{fragment: "virtual group", label: classify.LabelBand, bandHint: true},
	{fragment: "vocaloid", label: classify.LabelVocaloid},
	{fragment: "utau", label: classify.LabelVocaloid},
	{fragment: "virtual youtuber", label: classify.LabelVTuber},
	{fragment: "vtuber", label: classify.LabelVTuber},
	{fragment: "hololive", label: classify.LabelVTuber},
	{fragment: "virtual idol", label: classify.LabelVirtualIdol},
	{fragment: "virtual singer", label: classify.LabelVirtualIdol},
	{fragment: "ai generated", label: classify.LabelAIGenerated},
	{fragment: "ai-generated", label: classify.LabelAIGenerated},
	{fragment: "ai music", label: classify.LabelAIGenerated},
	{fragment: "fictional character", label: classify.LabelFictional},
	{fragment: "fictional", label: classify.LabelFictional},
	{fragment: "virtual artist", label: classify.LabelVirtual},
	{fragment: "virtual", label: classify.LabelVirtual},
}

// matchTag returns the rule matching a tag, if any.
func matchTag(tag string) (tagRule, bool) {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	for _, rule := range tagRules {
		if strings.Contains(normalized, rule.fragment) {
			return rule, true
		}
	}
	return tagRule{}, false
}

// strongestTagMatch scans tags in order and returns the strongest match:
// band hints win outright (they feed the band policy), otherwise the most
// specific artificial label by priority.
func strongestTagMatch(tags []string) (rule tagRule, matched []string, found bool) {
	best := tagRule{}
	for _, tag := range tags {
		r, ok := matchTag(tag)
		if !ok {
			continue
		}
		matched = append(matched, tag)
		if !found {
			best, found = r, true
			continue
		}
		if r.bandHint && !best.bandHint {
			best = r
		} else if r.bandHint == best.bandHint && labelOutranks(r.label, best.label) {
			best = r
		}
	}
	return best, matched, found
}

// labelOutranks reports whether a is more specific than b in the artificial
// label priority order.
func labelOutranks(a, b classify.Label) bool {
	rank := func(l classify.Label) int {
		switch l {
		case classify.LabelVTuber:
			return 0
		case classify.LabelVocaloid:
			return 1
		case classify.LabelVirtualIdol:
			return 2
		case classify.LabelVirtual:
			return 3
		case classify.LabelFictional:
			return 4
		case classify.LabelAIGenerated:
			return 5
		default:
			return 6
		}
	}
	return rank(a) < rank(b)
}
