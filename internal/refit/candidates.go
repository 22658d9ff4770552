package refit

import (
	"fmt"

	"github.com/banshee-data/trackrefit/internal/trkr"
)

// BuildCandidates turns the event's seed links into track candidates with
// sequential ids. Links with a missing silicon seed, an unset crossing or a
// missing TPC seed are skipped; one error wrapping ErrMissingSeed is
// returned per skipped link.
func BuildCandidates(ev *trkr.Event) (*TrackMap, []error) {
	tracks := NewTrackMap()
	var skipped []error
	var id uint32

	for i, link := range ev.Tracks {
		silicon, ok := ev.SiliconSeed(link.SiliconIndex)
		if !ok {
			skipped = append(skipped, fmt.Errorf("%w: link %d has no silicon seed", ErrMissingSeed, i))
			continue
		}
		if silicon.Crossing == trkr.CrossingUnset {
			skipped = append(skipped, fmt.Errorf("%w: link %d silicon seed has no crossing", ErrMissingSeed, i))
			continue
		}
		tpc, ok := ev.TPCSeed(link.TPCIndex)
		if !ok {
			skipped = append(skipped, fmt.Errorf("%w: link %d has no tpc seed", ErrMissingSeed, i))
			continue
		}

		t := NewCandidate(id)
		id++
		t.SiliconSeed = link.SiliconIndex
		t.TPCSeed = link.TPCIndex
		t.Crossing = silicon.Crossing
		t.Pos = silicon.Position
		t.Mom = tpc.Momentum
		t.Charge = -1
		if tpc.QOverR > 0 {
			t.Charge = 1
		}
		t.ClusterKeys = uniqueKeys(silicon.ClusterKeys, tpc.ClusterKeys)
		tracks.Insert(t)
	}
	return tracks, skipped
}

func uniqueKeys(groups ...[]trkr.ClusterKey) []trkr.ClusterKey {
	seen := make(map[trkr.ClusterKey]struct{})
	var out []trkr.ClusterKey
	for _, g := range groups {
		for _, k := range g {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
