package osmio

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestAssembleRingsChainsTwoOpenSegmentsIntoOneClosedRing(t *testing.T) {
	// Two segments sharing endpoints that together form a closed square.
	a := []orb.Point{{0, 0}, {1, 0}, {1, 1}}
	b := []orb.Point{{1, 1}, {0, 1}, {0, 0}}

	rings := assembleRings([][]orb.Point{a, b})
	if len(rings) != 1 {
		t.Fatalf("expected exactly 1 ring, got %d", len(rings))
	}
	ring := rings[0]
	if ring[0] != ring[len(ring)-1] {
		t.Errorf("expected ring to be closed, got %v", ring)
	}
}

func TestAssembleRingsAlreadyClosedChainStaysOneRing(t *testing.T) {
	closed := []orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	rings := assembleRings([][]orb.Point{closed})
	if len(rings) != 1 {
		t.Fatalf("expected 1 ring, got %d", len(rings))
	}
}

func TestAssembleRingsDropsUnclosableChain(t *testing.T) {
	dangling := []orb.Point{{0, 0}, {1, 0}, {2, 5}}
	rings := assembleRings([][]orb.Point{dangling})
	if len(rings) != 0 {
		t.Errorf("expected dangling chain to be dropped, got %v", rings)
	}
}

func TestHasAreaTag(t *testing.T) {
	cases := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{"area=yes", map[string]string{"area": "yes"}, true},
		{"building", map[string]string{"building": "house"}, true},
		{"natural", map[string]string{"natural": "water"}, true},
		{"highway", map[string]string{"highway": "primary"}, false},
		{"no tags", nil, false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			if got := hasAreaTag(c.tags); got != c.want {
				t.Errorf("hasAreaTag(%v) = %v, want %v", c.tags, got, c.want)
			}
		})
	}
}
