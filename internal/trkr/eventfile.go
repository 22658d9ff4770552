package trkr

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"
)

// EventFile is the on-disk JSON layout for a batch of events.
type EventFile struct {
	Events []EventRecord `json:"events"`
}

// EventRecord is one event in an EventFile.
type EventRecord struct {
	Number       int                 `json:"event"`
	Clusters     []ClusterRecord     `json:"clusters"`
	Surfaces     []SurfaceRecord     `json:"surfaces,omitempty"`
	SiliconSeeds []SiliconSeedRecord `json:"silicon_seeds"`
	TPCSeeds     []TPCSeedRecord     `json:"tpc_seeds"`
	Tracks       []SeedLinkRecord    `json:"track_seeds"`
}

// ClusterRecord is the JSON form of a Cluster.
type ClusterRecord struct {
	Key         uint64                `json:"key"`
	Position    [3]float64            `json:"position"`
	RPhiError   float64               `json:"rphi_error"`
	ZError      float64               `json:"z_error"`
	Corrections map[string][3]float64 `json:"corrections,omitempty"`
}

// SurfaceRecord is the JSON form of a Surface.
type SurfaceRecord struct {
	HitSet uint32     `json:"hitset_key"`
	U      [3]float64 `json:"u"`
	V      [3]float64 `json:"v"`
}

// SiliconSeedRecord is the JSON form of a SiliconSeed. A missing crossing
// decodes as CrossingUnset.
type SiliconSeedRecord struct {
	ClusterKeys []uint64   `json:"cluster_keys"`
	Crossing    *int16     `json:"crossing,omitempty"`
	Position    [3]float64 `json:"position"`
}

// TPCSeedRecord is the JSON form of a TPCSeed.
type TPCSeedRecord struct {
	ClusterKeys []uint64   `json:"cluster_keys"`
	QOverR      float64    `json:"q_over_r"`
	Momentum    [3]float64 `json:"momentum"`
}

// SeedLinkRecord is the JSON form of a SeedLink. Missing indices decode as
// NoSeed.
type SeedLinkRecord struct {
	SiliconIndex *int `json:"silicon_index,omitempty"`
	TPCIndex     *int `json:"tpc_index,omitempty"`
}

func vecFrom(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }
func arrayFrom(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func keysFrom(in []uint64) []ClusterKey {
	out := make([]ClusterKey, len(in))
	for i, k := range in {
		out[i] = ClusterKey(k)
	}
	return out
}

func keysTo(in []ClusterKey) []uint64 {
	out := make([]uint64, len(in))
	for i, k := range in {
		out[i] = uint64(k)
	}
	return out
}

// Event converts the record into an Event.
func (r EventRecord) Event() (Event, error) {
	ev := Event{Number: r.Number}

	for _, c := range r.Clusters {
		cluster := Cluster{
			Key:       ClusterKey(c.Key),
			Position:  vecFrom(c.Position),
			RPhiError: c.RPhiError,
			ZError:    c.ZError,
		}
		if len(c.Corrections) > 0 {
			cluster.Corrections = make(map[Correction]r3.Vec, len(c.Corrections))
			for name, offset := range c.Corrections {
				corr, err := ParseCorrection(name)
				if err != nil {
					return Event{}, fmt.Errorf("event %d cluster %d: %w", r.Number, c.Key, err)
				}
				cluster.Corrections[corr] = vecFrom(offset)
			}
		}
		ev.Clusters = append(ev.Clusters, cluster)
	}

	for _, s := range r.Surfaces {
		ev.Surfaces = append(ev.Surfaces, Surface{HitSet: HitSetKey(s.HitSet), U: vecFrom(s.U), V: vecFrom(s.V)})
	}

	for _, s := range r.SiliconSeeds {
		crossing := CrossingUnset
		if s.Crossing != nil {
			crossing = *s.Crossing
		}
		ev.SiliconSeeds = append(ev.SiliconSeeds, SiliconSeed{
			ClusterKeys: keysFrom(s.ClusterKeys),
			Crossing:    crossing,
			Position:    vecFrom(s.Position),
		})
	}

	for _, s := range r.TPCSeeds {
		ev.TPCSeeds = append(ev.TPCSeeds, TPCSeed{
			ClusterKeys: keysFrom(s.ClusterKeys),
			QOverR:      s.QOverR,
			Momentum:    vecFrom(s.Momentum),
		})
	}

	for _, l := range r.Tracks {
		link := SeedLink{SiliconIndex: NoSeed, TPCIndex: NoSeed}
		if l.SiliconIndex != nil {
			link.SiliconIndex = *l.SiliconIndex
		}
		if l.TPCIndex != nil {
			link.TPCIndex = *l.TPCIndex
		}
		ev.Tracks = append(ev.Tracks, link)
	}

	return ev, nil
}

// RecordFromEvent converts an Event into its JSON record.
func RecordFromEvent(ev *Event) EventRecord {
	r := EventRecord{Number: ev.Number}

	for _, c := range ev.Clusters {
		rec := ClusterRecord{
			Key:       uint64(c.Key),
			Position:  arrayFrom(c.Position),
			RPhiError: c.RPhiError,
			ZError:    c.ZError,
		}
		if len(c.Corrections) > 0 {
			rec.Corrections = make(map[string][3]float64, len(c.Corrections))
			for corr, offset := range c.Corrections {
				rec.Corrections[corr.String()] = arrayFrom(offset)
			}
		}
		r.Clusters = append(r.Clusters, rec)
	}

	for _, s := range ev.Surfaces {
		r.Surfaces = append(r.Surfaces, SurfaceRecord{HitSet: uint32(s.HitSet), U: arrayFrom(s.U), V: arrayFrom(s.V)})
	}

	for _, s := range ev.SiliconSeeds {
		rec := SiliconSeedRecord{ClusterKeys: keysTo(s.ClusterKeys), Position: arrayFrom(s.Position)}
		if s.Crossing != CrossingUnset {
			crossing := s.Crossing
			rec.Crossing = &crossing
		}
		r.SiliconSeeds = append(r.SiliconSeeds, rec)
	}

	for _, s := range ev.TPCSeeds {
		r.TPCSeeds = append(r.TPCSeeds, TPCSeedRecord{
			ClusterKeys: keysTo(s.ClusterKeys),
			QOverR:      s.QOverR,
			Momentum:    arrayFrom(s.Momentum),
		})
	}

	for _, l := range ev.Tracks {
		var rec SeedLinkRecord
		if l.SiliconIndex != NoSeed {
			si := l.SiliconIndex
			rec.SiliconIndex = &si
		}
		if l.TPCIndex != NoSeed {
			ti := l.TPCIndex
			rec.TPCIndex = &ti
		}
		r.Tracks = append(r.Tracks, rec)
	}

	return r
}

// ReadEvents decodes an EventFile from r.
func ReadEvents(r io.Reader) ([]Event, error) {
	var file EventFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	events := make([]Event, 0, len(file.Events))
	for _, rec := range file.Events {
		ev, err := rec.Event()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// LoadEvents reads an EventFile from a .json path.
func LoadEvents(path string) ([]Event, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("event file must have .json extension, got %q", ext)
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	defer f.Close()
	return ReadEvents(f)
}

// WriteEvents encodes events as an indented EventFile.
func WriteEvents(w io.Writer, events []Event) error {
	file := EventFile{Events: make([]EventRecord, 0, len(events))}
	for i := range events {
		file.Events = append(file.Events, RecordFromEvent(&events[i]))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	return nil
}
