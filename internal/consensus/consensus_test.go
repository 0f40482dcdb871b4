package consensus

import (
	"math"
	"testing"

	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

func det(model, class string, conf, x1, y1, x2, y2 float64) assessment.Detection {
	return assessment.Detection{
		Box:        assessment.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Confidence: conf,
		Class:      class,
		Model:      model,
	}
}

func TestMatchSingletonNeverEmitted(t *testing.T) {
	lists := [][]assessment.Detection{
		{det("a", "scratch", 0.9, 0, 0, 50, 50)},
		{det("b", "dent", 0.8, 500, 500, 560, 560)},
		{det("c", "scratch", 0.95, 1000, 0, 1050, 40)},
	}

	items := Match(lists, DefaultIoUThreshold)
	if len(items) != 0 {
		t.Fatalf("got %d items from pairwise-disjoint boxes, want 0", len(items))
	}
}

func TestMatchNonOverlappingNeverMerged(t *testing.T) {
	// Identical class and high confidence must not matter: IoU is zero.
	lists := [][]assessment.Detection{
		{det("a", "dent", 0.99, 0, 0, 100, 100)},
		{det("b", "dent", 0.99, 100, 100, 200, 200)},
	}

	items := Match(lists, DefaultIoUThreshold)
	if len(items) != 0 {
		t.Fatalf("got %d items from non-overlapping boxes, want 0", len(items))
	}
}

func TestMatchThresholdIsStrict(t *testing.T) {
	// Two half-offset identical boxes: IoU = 50/150 = 1/3. Exactly at a
	// threshold of 1/3 they must not merge.
	a := det("a", "dent", 0.9, 0, 0, 100, 1)
	b := det("b", "dent", 0.9, 50, 0, 150, 1)

	if items := Match([][]assessment.Detection{{a}, {b}}, 1.0/3.0); len(items) != 0 {
		t.Fatalf("boxes at IoU == threshold merged, want no merge")
	}
	if items := Match([][]assessment.Detection{{a}, {b}}, 0.3); len(items) != 1 {
		t.Fatalf("boxes above threshold did not merge")
	}
}

func TestMatchEmitsAveragedDamageItem(t *testing.T) {
	lists := [][]assessment.Detection{
		{det("sindhu", "scratch", 0.8, 0, 0, 100, 100)},
		{det("cddce", "dent", 0.6, 10, 10, 110, 110)},
	}

	items := Match(lists, DefaultIoUThreshold)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	item := items[0]
	if item.Category != assessment.CategoryDamage {
		t.Errorf("category = %s, want DAMAGE", item.Category)
	}
	if item.Contributors != 2 {
		t.Errorf("contributors = %d, want 2", item.Contributors)
	}
	wantBox := assessment.Box{X1: 5, Y1: 5, X2: 105, Y2: 105}
	if item.Box != wantBox {
		t.Errorf("box = %+v, want %+v", item.Box, wantBox)
	}
	if math.Abs(item.Confidence-0.7) > 1e-9 {
		t.Errorf("confidence = %v, want 0.7", item.Confidence)
	}
}

func TestMatchCategoryArbitration(t *testing.T) {
	tests := []struct {
		name    string
		classes []string
		want    assessment.Category
		wantOK  bool
	}{
		{
			name:    "two windshield labels win",
			classes: []string{"Windshield Crack", "windshield", "dent"},
			want:    assessment.CategoryWindshield,
			wantOK:  true,
		},
		{
			name:    "two light labels win without windshield pair",
			classes: []string{"Broken Light", "headlight damage", "windshield"},
			want:    assessment.CategoryLight,
			wantOK:  true,
		},
		{
			name:    "two generic labels fall through to damage",
			classes: []string{"scratch", "dent", "windshield"},
			want:    assessment.CategoryDamage,
			wantOK:  true,
		},
		{
			name:    "mixed pairless cluster emits nothing",
			classes: []string{"windshield", "light"},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Stack all boxes on the same region so they form one cluster.
			var lists [][]assessment.Detection
			for i, class := range tt.classes {
				lists = append(lists, []assessment.Detection{
					det(string(rune('a'+i)), class, 0.9, 0, 0, 100, 100),
				})
			}

			items := Match(lists, DefaultIoUThreshold)
			if !tt.wantOK {
				if len(items) != 0 {
					t.Fatalf("got %d items, want 0", len(items))
				}
				return
			}
			if len(items) != 1 {
				t.Fatalf("got %d items, want 1", len(items))
			}
			if items[0].Category != tt.want {
				t.Errorf("category = %s, want %s", items[0].Category, tt.want)
			}
		})
	}
}

func TestMatchSameModelVotesCount(t *testing.T) {
	// Duplicate detections from a single model are two votes. Accepted
	// behavior of the matching rule: model identity is not deduplicated.
	lists := [][]assessment.Detection{
		{
			det("sindhu", "scratch", 0.8, 0, 0, 100, 100),
			det("sindhu", "scratch", 0.9, 5, 5, 105, 105),
		},
	}

	items := Match(lists, DefaultIoUThreshold)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Contributors != 2 {
		t.Errorf("contributors = %d, want 2", items[0].Contributors)
	}
}

func TestMatchFirstMatchWinsOrder(t *testing.T) {
	// Three boxes where the first overlaps the second and the second
	// overlaps the third, but first and third do not overlap enough. The
	// left-to-right scan consumes the second into the first's cluster; the
	// third is left as a singleton and discarded.
	a := det("a", "dent", 0.9, 0, 0, 100, 100)
	b := det("b", "dent", 0.9, 30, 0, 130, 100)
	c := det("c", "dent", 0.9, 75, 0, 175, 100)

	items := Match([][]assessment.Detection{{a}, {b}, {c}}, 0.5)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Contributors != 2 {
		t.Errorf("contributors = %d, want 2 (a and b)", items[0].Contributors)
	}
	wantX1 := 15.0 // mean of 0 and 30
	if math.Abs(items[0].Box.X1-wantX1) > 1e-9 {
		t.Errorf("box.X1 = %v, want %v", items[0].Box.X1, wantX1)
	}
}
