package vision

import (
	"reflect"
	"testing"
)

func TestSampleIndices(t *testing.T) {
	tests := []struct {
		name  string
		total int
		n     int
		want  []int
	}{
		{"even spread", 100, 5, []int{0, 24, 49, 74, 99}},
		{"both ends inclusive", 11, 2, []int{0, 10}},
		{"single sample", 100, 1, []int{0}},
		{"fewer frames than samples", 3, 6, []int{0, 0, 0, 1, 1, 2}},
		{"one frame video", 1, 4, []int{0, 0, 0, 0}},
		{"zero total", 0, 4, nil},
		{"zero samples", 100, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleIndices(tt.total, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SampleIndices(%d, %d) = %v, want %v", tt.total, tt.n, got, tt.want)
			}
		})
	}
}

func TestSampleIndices_ExactCountAndBounds(t *testing.T) {
	got := SampleIndices(3600, 12)
	if len(got) != 12 {
		t.Fatalf("expected 12 indices, got %d", len(got))
	}
	if got[0] != 0 {
		t.Errorf("expected first index 0, got %d", got[0])
	}
	if got[len(got)-1] != 3599 {
		t.Errorf("expected last index 3599, got %d", got[len(got)-1])
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Errorf("indices not non-decreasing at %d: %v", i, got)
		}
	}
}
