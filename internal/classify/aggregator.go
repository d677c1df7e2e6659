package classify

import (
	"fmt"
	"sort"
)

// Aggregator combines per source signals into a single verdict using the
// source agreement rule. It is stateless and safe for concurrent use.
type Aggregator struct {
	minAgreement int
	bandPolicy   bool
}

// AggregateResult is the outcome of one aggregation pass. Conclusive is
// false when the fail open unknown branch was taken.
type AggregateResult struct {
	Label             Label
	IsArtificial      bool
	Confidence        float64
	AgreeingSources   []string
	BandPolicyApplied bool
	Conclusive        bool
	Reason            string
}

// NewAggregator returns an aggregator requiring minAgreement concurring
// sources. When bandPolicy is true, a band signal carrying a virtual or
// fictional annotation forces an artificial verdict on its own.
func NewAggregator(minAgreement int, bandPolicy bool) *Aggregator {
	if minAgreement < 1 {
		minAgreement = 1
	}
	return &Aggregator{minAgreement: minAgreement, bandPolicy: bandPolicy}
}

// Aggregate applies the agreement rule to the gathered signals. The result
// does not depend on signal order. Failed lookups are ignored for agreement
// and excluded from the confidence denominator; sources that responded with
// no data lower the unknown branch confidence only.
func (a *Aggregator) Aggregate(signals []SourceSignal) AggregateResult {
	queried := len(signals)

	var labeled []SourceSignal
	for i := range signals {
		if signals[i].HasLabel() {
			labeled = append(labeled, signals[i])
		}
	}

	// Artificial class agreement. All artificial labels count towards one
	// another: a vtuber vote and a virtual_idol vote agree that the artist
	// is artificial even though the labels differ.
	var artificial []SourceSignal
	for i := range labeled {
		if labeled[i].Label.IsArtificial() {
			artificial = append(artificial, labeled[i])
		}
	}
	if len(artificial) >= a.minAgreement {
		label := dominantArtificialLabel(artificial)
		return AggregateResult{
			Label:           label,
			IsArtificial:    true,
			Confidence:      ratio(len(artificial), len(labeled)),
			AgreeingSources: sourceNames(artificial),
			Conclusive:      true,
			Reason: fmt.Sprintf("%d of %d labeling sources report an artificial artist, most specific label %s",
				len(artificial), len(labeled), label),
		}
	}

	// Band policy: a single band signal annotated as virtual or fictional is
	// enough to call the act artificial, regardless of the agreement
	// threshold. This overrides a human leaning majority.
	if a.bandPolicy {
		var hinted []SourceSignal
		for i := range labeled {
			if labeled[i].Label == LabelBand && labeled[i].VirtualHint {
				hinted = append(hinted, labeled[i])
			}
		}
		if len(hinted) > 0 {
			return AggregateResult{
				Label:             LabelBand,
				IsArtificial:      true,
				Confidence:        ratio(len(hinted), len(labeled)),
				AgreeingSources:   sourceNames(hinted),
				BandPolicyApplied: true,
				Conclusive:        true,
				Reason: fmt.Sprintf("band policy: %d source(s) report a band with a virtual or fictional annotation",
					len(hinted)),
			}
		}
	}

	// Human class agreement. Human and band votes agree that the act is
	// real; band is the more specific of the two and wins ties.
	var humanish []SourceSignal
	humanCount, bandCount := 0, 0
	for i := range labeled {
		switch labeled[i].Label {
		case LabelHuman:
			humanCount++
			humanish = append(humanish, labeled[i])
		case LabelBand:
			bandCount++
			humanish = append(humanish, labeled[i])
		}
	}
	if len(humanish) >= a.minAgreement {
		// Band takes precedence whenever it reaches the agreement threshold
		// on its own; otherwise the class that did reach it names the
		// verdict, with band winning the combined-vote tie as the more
		// specific label.
		label := LabelHuman
		switch {
		case bandCount >= a.minAgreement:
			label = LabelBand
		case humanCount >= a.minAgreement:
			label = LabelHuman
		case bandCount >= humanCount:
			label = LabelBand
		}
		return AggregateResult{
			Label:           label,
			IsArtificial:    false,
			Confidence:      ratio(len(humanish), len(labeled)),
			AgreeingSources: sourceNames(humanish),
			Conclusive:      true,
			Reason: fmt.Sprintf("%d of %d labeling sources report a real artist (%d human, %d band)",
				len(humanish), len(labeled), humanCount, bandCount),
		}
	}

	// Fail open: no side reached the agreement threshold. Confidence here
	// measures how much of the source fleet produced any signal at all.
	return AggregateResult{
		Label:      LabelUnknown,
		Confidence: ratio(len(labeled), queried),
		Reason: fmt.Sprintf("insufficient agreement: %d of %d queried sources produced a label, %d required to concur",
			len(labeled), queried, a.minAgreement),
	}
}

// dominantArtificialLabel picks the most frequent artificial label, breaking
// frequency ties by specificity.
func dominantArtificialLabel(artificial []SourceSignal) Label {
	counts := make(map[Label]int, len(artificial))
	for i := range artificial {
		counts[artificial[i].Label]++
	}
	best := LabelAIGenerated
	bestCount := -1
	for label, count := range counts {
		if count > bestCount || (count == bestCount && priorityRank(label) < priorityRank(best)) {
			best = label
			bestCount = count
		}
	}
	return best
}

func sourceNames(signals []SourceSignal) []string {
	names := make([]string, 0, len(signals))
	for i := range signals {
		names = append(names, signals[i].Source)
	}
	sort.Strings(names)
	return names
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
