package waves

import (
	"errors"
	"fmt"
	"strings"

	"github.com/seawatts/grid-sub000/internal/state"
)

// ErrNoEndpoints is returned when the grid lacks starts or goals.
var ErrNoEndpoints = errors.New("waves: grid has no start or no goal")

// Blockage reasons reported by PathBlockedError.
const (
	ReasonMap        = "map"
	ReasonPlacements = "placements"
)

// PathBlockedError means at least one start cannot reach any goal. The wave
// does not start and the state is left untouched.
type PathBlockedError struct {
	Wave   int
	Reason string
	Starts []state.Position
	// TowerIDs and PlaceableIDs name the player placements bordering the
	// sealed-off region around each failing start.
	TowerIDs     []int
	PlaceableIDs []int
}

func (e *PathBlockedError) Error() string {
	starts := make([]string, len(e.Starts))
	for i, s := range e.Starts {
		starts[i] = fmt.Sprintf("(%d,%d)", s.Cell().X, s.Cell().Y)
	}
	where := strings.Join(starts, ", ")
	if e.Reason == ReasonMap {
		return fmt.Sprintf("wave %d: no route from start %s to any goal; the map itself is unsolvable", e.Wave, where)
	}
	return fmt.Sprintf("wave %d: start %s is cut off from every goal by placed towers %v and items %v; remove one to open a route",
		e.Wave, where, e.TowerIDs, e.PlaceableIDs)
}
