package damage

import (
	"math"
	"testing"

	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

func item(cat assessment.Category, x1, y1, x2, y2 float64) assessment.ConsensusItem {
	return assessment.ConsensusItem{
		Box:          assessment.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Category:     cat,
		Contributors: 2,
	}
}

func tire(x1, y1, x2, y2 float64) assessment.Detection {
	return assessment.Detection{
		Box:   assessment.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Class: "wheel",
	}
}

func TestAggregateComponentExclusions(t *testing.T) {
	items := []assessment.ConsensusItem{
		item(assessment.CategoryWindshield, 0, 0, 100, 100),
		item(assessment.CategoryLight, 200, 0, 260, 40),
	}

	s := Aggregate(items, nil, 0.5)

	if !s.Flags.Windshield || !s.Flags.Light {
		t.Errorf("flags = %+v, want windshield and light set", s.Flags)
	}
	if s.PaintAreaCm2 != 0 {
		t.Errorf("paint area = %v, want 0 (components excluded)", s.PaintAreaCm2)
	}
	if s.PaintCost != 0 {
		t.Errorf("paint cost = %v, want 0 for zero area", s.PaintCost)
	}
}

func TestAggregatePaintAreaConversion(t *testing.T) {
	// 50x50 px at 0.6 cm/px is a 30x30 cm patch: 900 cm².
	items := []assessment.ConsensusItem{
		item(assessment.CategoryDamage, 0, 0, 50, 50),
	}

	s := Aggregate(items, nil, 0.6)

	if math.Abs(s.PaintAreaCm2-900) > 1e-9 {
		t.Errorf("paint area = %v, want 900", s.PaintAreaCm2)
	}
	wantCost := 0.019157*900 + 2.093
	if math.Abs(s.PaintCost-wantCost) > 1e-9 {
		t.Errorf("paint cost = %v, want %v", s.PaintCost, wantCost)
	}
}

func TestAggregateTireOverlap(t *testing.T) {
	tests := []struct {
		name         string
		damage       assessment.ConsensusItem
		tires        []assessment.Detection
		wantTireFlag bool
		wantExcluded bool
	}{
		{
			name:   "more than half inside a tire box is excluded",
			damage: item(assessment.CategoryDamage, 0, 0, 100, 100),
			tires:  []assessment.Detection{tire(0, 0, 80, 100)},
			// 80% overlap
			wantTireFlag: true,
			wantExcluded: true,
		},
		{
			name:   "exactly half overlap is kept",
			damage: item(assessment.CategoryDamage, 0, 0, 100, 100),
			tires:  []assessment.Detection{tire(0, 0, 50, 100)},
			// 50% overlap, strict > keeps it as paint damage; the epsilon in
			// the denominator pushes the fraction just under one half
			wantTireFlag: false,
			wantExcluded: false,
		},
		{
			name:         "no tire boxes",
			damage:       item(assessment.CategoryDamage, 0, 0, 100, 100),
			tires:        nil,
			wantTireFlag: false,
			wantExcluded: false,
		},
		{
			name:   "second tire box triggers exclusion",
			damage: item(assessment.CategoryDamage, 0, 0, 100, 100),
			tires: []assessment.Detection{
				tire(500, 500, 600, 600),
				tire(0, 0, 100, 60),
			},
			wantTireFlag: true,
			wantExcluded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Aggregate([]assessment.ConsensusItem{tt.damage}, tt.tires, 1.0)

			if s.Flags.Tire != tt.wantTireFlag {
				t.Errorf("tire flag = %v, want %v", s.Flags.Tire, tt.wantTireFlag)
			}
			excluded := s.PaintAreaCm2 == 0
			if excluded != tt.wantExcluded {
				t.Errorf("excluded = %v, want %v (paint area %v)", excluded, tt.wantExcluded, s.PaintAreaCm2)
			}
		})
	}
}

func TestPaintCost(t *testing.T) {
	if got := PaintCost(0); got != 0 {
		t.Errorf("PaintCost(0) = %v, want 0", got)
	}
	if got := PaintCost(-5); got != 0 {
		t.Errorf("PaintCost(-5) = %v, want 0", got)
	}
	want := 0.019157*100 + 2.093
	if got := PaintCost(100); math.Abs(got-want) > 1e-9 {
		t.Errorf("PaintCost(100) = %v, want %v", got, want)
	}
}

func TestModelAndConsensusArea(t *testing.T) {
	dets := []assessment.Detection{
		{Box: assessment.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}},
		{Box: assessment.Box{X1: 0, Y1: 0, X2: 20, Y2: 5}},
	}
	// (10*0.5)*(10*0.5) + (20*0.5)*(5*0.5) = 25 + 25
	if got := ModelArea(dets, 0.5); math.Abs(got-50) > 1e-9 {
		t.Errorf("ModelArea = %v, want 50", got)
	}

	items := []assessment.ConsensusItem{
		item(assessment.CategoryDamage, 0, 0, 10, 10),
		item(assessment.CategoryWindshield, 0, 0, 20, 5),
	}
	// Consensus area counts every item, component categories included.
	if got := ConsensusArea(items, 0.5); math.Abs(got-50) > 1e-9 {
		t.Errorf("ConsensusArea = %v, want 50", got)
	}
}
