// Package consensus reconciles the outputs of independently trained damage
// detectors into a single trusted set of damage regions. Requiring agreement
// from two or more detector votes suppresses single-model false positives;
// coordinate averaging smooths localization noise.
package consensus

import (
	"strings"

	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

// DefaultIoUThreshold is the overlap required for two boxes to be considered
// the same damage region.
const DefaultIoUThreshold = 0.5

// Match clusters detections from all models by IoU and emits arbitrated
// consensus items.
//
// Clustering is single-linkage, left-to-right, first-match-wins: detections
// are scanned in model order, each unconsumed detection collects every later
// unconsumed detection whose IoU with it strictly exceeds the threshold.
// This order dependence is deliberate and must not be replaced with a
// symmetric clustering method. Model identity is not deduplicated: two boxes
// from the same model count as two votes.
//
// A cluster of fewer than two members is discarded. Category arbitration
// within a cluster is by fixed priority: two or more "windshield" labels win,
// else two or more "light" labels, else two or more labels that are neither.
// At most one item is emitted per cluster.
func Match(detectionLists [][]assessment.Detection, iouThreshold float64) []assessment.ConsensusItem {
	var all []assessment.Detection
	for _, list := range detectionLists {
		all = append(all, list...)
	}

	var items []assessment.ConsensusItem
	used := make([]bool, len(all))

	for i := range all {
		if used[i] {
			continue
		}

		cluster := []assessment.Detection{all[i]}
		for j := range all {
			if i == j || used[j] {
				continue
			}
			if all[i].Box.IoU(all[j].Box) > iouThreshold {
				cluster = append(cluster, all[j])
				used[j] = true
			}
		}
		used[i] = true

		if len(cluster) < 2 {
			continue
		}
		if item, ok := arbitrate(cluster); ok {
			items = append(items, item)
		}
	}

	return items
}

func arbitrate(cluster []assessment.Detection) (assessment.ConsensusItem, bool) {
	var windshieldVotes, lightVotes, otherVotes int
	for _, d := range cluster {
		name := strings.ToLower(d.Class)
		switch {
		case strings.Contains(name, "windshield"):
			windshieldVotes++
		case strings.Contains(name, "light"):
			lightVotes++
		default:
			otherVotes++
		}
	}

	var category assessment.Category
	switch {
	case windshieldVotes >= 2:
		category = assessment.CategoryWindshield
	case lightVotes >= 2:
		category = assessment.CategoryLight
	case otherVotes >= 2:
		category = assessment.CategoryDamage
	default:
		return assessment.ConsensusItem{}, false
	}

	return assessment.ConsensusItem{
		Box:          meanBox(cluster),
		Confidence:   meanConfidence(cluster),
		Category:     category,
		Contributors: len(cluster),
	}, true
}

func meanBox(cluster []assessment.Detection) assessment.Box {
	var b assessment.Box
	for _, d := range cluster {
		b.X1 += d.Box.X1
		b.Y1 += d.Box.Y1
		b.X2 += d.Box.X2
		b.Y2 += d.Box.Y2
	}
	n := float64(len(cluster))
	return assessment.Box{X1: b.X1 / n, Y1: b.Y1 / n, X2: b.X2 / n, Y2: b.Y2 / n}
}

func meanConfidence(cluster []assessment.Detection) float64 {
	var sum float64
	for _, d := range cluster {
		sum += d.Confidence
	}
	return sum / float64(len(cluster))
}
