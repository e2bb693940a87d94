package motion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComputeTimingDegenerateInputs(t *testing.T) {
	tests := []struct {
		name  string
		steps uint32
		speed int32
		accel int32
	}{
		{"zero steps", 0, 4000, 16000},
		{"zero speed", 100, 0, 16000},
		{"negative speed", 100, -5, 16000},
		{"zero accel", 100, 4000, 0},
		{"negative accel", 100, 4000, -1},
	}

	for _, test := range tests {
		timing := ComputeTiming(test.steps, test.speed, test.accel)
		if timing.TotalDurationUs != 0 || timing.AccelSteps != 0 || timing.CruiseSteps != 0 {
			t.Errorf("%s: expected zero profile, got %+v", test.name, timing)
		}
		if timing.TotalSteps != test.steps {
			t.Errorf("%s: expected TotalSteps=%d, got %d", test.name, test.steps, timing.TotalSteps)
		}
	}
}

func TestComputeTimingTrapezoidReference(t *testing.T) {
	timing := ComputeTiming(2400, 4000, 16000)

	if timing.TotalSteps != 2400 {
		t.Errorf("expected TotalSteps=2400, got %d", timing.TotalSteps)
	}
	if timing.AccelSteps < 495 || timing.AccelSteps > 505 {
		t.Errorf("expected AccelSteps ~500, got %d", timing.AccelSteps)
	}
	if timing.CruiseSteps == 0 {
		t.Errorf("expected a cruise segment, got none")
	}
	if timing.TotalDurationUs < 849998 || timing.TotalDurationUs > 850002 {
		t.Errorf("expected TotalDurationUs ~850000, got %d", timing.TotalDurationUs)
	}
}

func TestComputeTimingTriangular(t *testing.T) {
	// 300 steps at 4000 Hz / 16000 steps/s^2 never reaches speed:
	// ramp would need 500 steps each way.
	timing := ComputeTiming(300, 4000, 16000)

	if timing.AccelSteps != 150 {
		t.Errorf("expected AccelSteps=150, got %d", timing.AccelSteps)
	}
	if timing.CruiseSteps != 0 {
		t.Errorf("expected CruiseSteps=0, got %d", timing.CruiseSteps)
	}
	if timing.TotalDurationUs < 273859 || timing.TotalDurationUs > 273863 {
		t.Errorf("expected TotalDurationUs ~273861, got %d", timing.TotalDurationUs)
	}
}

func TestComputeTimingTrapezoidBoundary(t *testing.T) {
	// Exactly 2*rampSteps: trapezoid with an empty cruise.
	timing := ComputeTiming(1000, 4000, 16000)

	if timing.AccelSteps != 500 {
		t.Errorf("expected AccelSteps=500, got %d", timing.AccelSteps)
	}
	if timing.CruiseSteps != 0 {
		t.Errorf("expected CruiseSteps=0, got %d", timing.CruiseSteps)
	}
	if timing.TotalDurationUs != 500000 {
		t.Errorf("expected TotalDurationUs=500000, got %d", timing.TotalDurationUs)
	}
}

func TestComputeTimingDeterministic(t *testing.T) {
	first := ComputeTiming(1234, 3000, 9000)
	second := ComputeTiming(1234, 3000, 9000)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("ComputeTiming not deterministic (-first +second):\n%s", diff)
	}
}
