// Package classify implements the artist classification pipeline: per source
// signals, the agreement based aggregator, the decision cache, manual
// overrides and the engine tying them together.
package classify

// Label is the closed set of classification outcomes an artist can receive.
type Label string

const (
	// LabelVocaloid marks synthesized voice software acts such as Hatsune Miku.
	LabelVocaloid Label = "vocaloid"
	// LabelVTuber marks virtual YouTuber personas.
	LabelVTuber Label = "vtuber"
	// LabelVirtualIdol marks virtual idol acts.
	LabelVirtualIdol Label = "virtual_idol"
	// LabelVirtual marks generically virtual acts without a finer category.
	LabelVirtual Label = "virtual"
	// LabelFictional marks fictional characters credited as artists.
	LabelFictional Label = "fictional"
	// LabelAIGenerated marks music generated by AI tooling.
	LabelAIGenerated Label = "ai_generated"
	// LabelHuman marks a confirmed human performer.
	LabelHuman Label = "human"
	// LabelBand marks a group of (nominally human) performers.
	LabelBand Label = "band"
	// LabelUnknown is the fail open outcome when no confident call can be made.
	LabelUnknown Label = "unknown"
	// LabelNone is the absence of a signal, a source that responded but had
	// no usable data. Never stored on a decision.
	LabelNone Label = ""
)

// artificialPriority orders artificial labels from most to least specific.
// Ties between equally frequent labels resolve to the earlier entry.
var artificialPriority = []Label{
	LabelVTuber,
	LabelVocaloid,
	LabelVirtualIdol,
	LabelVirtual,
	LabelFictional,
	LabelAIGenerated,
}

// IsArtificial reports whether the label denotes an artificial artist.
// Human, band, unknown and the empty label are not artificial.
func (l Label) IsArtificial() bool {
	switch l {
	case LabelVocaloid, LabelVTuber, LabelVirtualIdol, LabelVirtual, LabelFictional, LabelAIGenerated:
		return true
	default:
		return false
	}
}

// Valid reports whether the label is a member of the closed outcome set.
func (l Label) Valid() bool {
	switch l {
	case LabelVocaloid, LabelVTuber, LabelVirtualIdol, LabelVirtual,
		LabelFictional, LabelAIGenerated, LabelHuman, LabelBand, LabelUnknown:
		return true
	default:
		return false
	}
}

// ParseLabel maps a raw string to a Label, returning false when the string
// is not a member of the closed outcome set.
func ParseLabel(s string) (Label, bool) {
	l := Label(s)
	if l.Valid() {
		return l, true
	}
	return LabelUnknown, false
}

func (l Label) String() string {
	return string(l)
}

// priorityRank returns the position of an artificial label in the priority
// order, or len(artificialPriority) for labels outside it.
func priorityRank(l Label) int {
	for i, p := range artificialPriority {
		if p == l {
			return i
		}
	}
	return len(artificialPriority)
}
