package refitdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/refit"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("refit run not found")

// Run is one invocation of the refit over a set of events.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       *time.Time
	ConfigJSON       string
	Events           int
	Candidates       int
	Refit            int
	Rejected         int
	Failed           int
	VertexCandidates int
	Outcomes         map[refit.Outcome]int
}

// StartRun records a new run with the given configuration snapshot.
func (db *DB) StartRun(configJSON string) (*Run, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	run := &Run{
		ID:         uuid.NewString(),
		StartedAt:  db.clock.Now(),
		ConfigJSON: configJSON,
		Outcomes:   map[refit.Outcome]int{},
	}
	_, err := db.Exec(
		`INSERT INTO refit_runs (run_id, started_unix_ns, config_json) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt.UnixNano(), run.ConfigJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run's finish time.
func (db *DB) FinishRun(runID string) error {
	res, err := db.Exec(`UPDATE refit_runs SET finished_unix_ns = ? WHERE run_id = ?`, db.clock.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecordEvent stores the refitted tracks of one event and adds its summary
// to the run totals, in one transaction.
func (db *DB) RecordEvent(runID string, summary refit.EventSummary, tracks *refit.TrackMap) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE refit_runs SET
			events = events + 1,
			candidates = candidates + ?,
			refit = refit + ?,
			rejected = rejected + ?,
			failed = failed + ?,
			vertex_candidates = vertex_candidates + ?
		WHERE run_id = ?`,
		summary.Candidates, summary.Refit, summary.Rejected, summary.Failed, summary.VertexCandidates, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run totals: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	for outcome, count := range summary.Outcomes {
		if _, err := tx.Exec(`
			INSERT INTO refit_run_outcomes (run_id, outcome, count) VALUES (?, ?, ?)
			ON CONFLICT (run_id, outcome) DO UPDATE SET count = count + excluded.count`,
			runID, string(outcome), count,
		); err != nil {
			return fmt.Errorf("failed to record outcome %s: %w", outcome, err)
		}
	}

	for _, t := range tracks.Tracks() {
		if err := insertTrack(tx, runID, summary.Event, t); err != nil {
			return fmt.Errorf("track %d: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func insertTrack(tx *sql.Tx, runID string, event int, t *refit.Track) error {
	cov, err := encodeCov(t.Cov)
	if err != nil {
		return err
	}
	keys, err := json.Marshal(t.ClusterKeys)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO refit_tracks (
			run_id, event, track_id, silicon_seed, tpc_seed, crossing, charge,
			x, y, z, px, py, pz, cov_json, chi2, ndf,
			dca2d, dca2d_err, dca, dca_err, dca3d_xy, dca3d_xy_err, dca3d_z, dca3d_z_err,
			cluster_keys
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, event, t.ID, t.SiliconSeed, t.TPCSeed, t.Crossing, t.Charge,
		t.Pos.X, t.Pos.Y, t.Pos.Z, t.Mom.X, t.Mom.Y, t.Mom.Z, string(cov),
		nullable(t.ChiSquare), nullable(t.NDF),
		nullable(t.DCA2D), nullable(t.DCA2DError), nullable(t.DCA), nullable(t.DCAError),
		nullable(t.DCA3DXY), nullable(t.DCA3DXYError), nullable(t.DCA3DZ), nullable(t.DCA3DZError),
		string(keys),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO refit_states (
			run_id, event, track_id, seq, path_length, x, y, z, px, py, pz, cov_json, cluster_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range t.States {
		cov, err := encodeCov(s.Cov)
		if err != nil {
			return err
		}
		// SQLite integers are signed; keys are stored bit for bit.
		if _, err := stmt.Exec(runID, event, t.ID, i, s.PathLength,
			s.Pos.X, s.Pos.Y, s.Pos.Z, s.Mom.X, s.Mom.Y, s.Mom.Z, string(cov), int64(s.ClusterKey)); err != nil {
			return fmt.Errorf("failed to insert state %d: %w", i, err)
		}
	}
	return nil
}

// nullable maps NaN to NULL.
func nullable(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: !math.IsNaN(f)}
}

func fromNullable(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

// GetRun returns the run with its per-outcome counts.
func (db *DB) GetRun(runID string) (*Run, error) {
	runs, err := db.queryRuns(`WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return runs[0], nil
}

// Runs returns every run, most recent first.
func (db *DB) Runs() ([]*Run, error) {
	return db.queryRuns(``)
}

func (db *DB) queryRuns(where string, args ...any) ([]*Run, error) {
	rows, err := db.Query(`
		SELECT run_id, started_unix_ns, finished_unix_ns, config_json, events,
			candidates, refit, rejected, failed, vertex_candidates
		FROM refit_runs `+where+` ORDER BY started_unix_ns DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.ConfigJSON, &r.Events,
			&r.Candidates, &r.Refit, &r.Rejected, &r.Failed, &r.VertexCandidates); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			f := time.Unix(0, finished.Int64)
			r.FinishedAt = &f
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range runs {
		if r.Outcomes, err = db.outcomes(r.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (db *DB) outcomes(runID string) (map[refit.Outcome]int, error) {
	rows, err := db.Query(`SELECT outcome, count FROM refit_run_outcomes WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[refit.Outcome]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		out[refit.Outcome(name)] = count
	}
	return out, rows.Err()
}

// EventTracks is the stored output of one event.
type EventTracks struct {
	Event  int
	Tracks []*refit.Track
}

// Tracks loads every stored track of a run with its states, ordered by
// event and track id.
func (db *DB) Tracks(runID string) ([]EventTracks, error) {
	rows, err := db.Query(`
		SELECT event, track_id, silicon_seed, tpc_seed, crossing, charge,
			x, y, z, px, py, pz, cov_json, chi2, ndf,
			dca2d, dca2d_err, dca, dca_err, dca3d_xy, dca3d_xy_err, dca3d_z, dca3d_z_err,
			cluster_keys
		FROM refit_tracks WHERE run_id = ? ORDER BY event, track_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type trackKey struct {
		event int
		id    uint32
	}
	byKey := make(map[trackKey]*refit.Track)
	var out []EventTracks

	for rows.Next() {
		var (
			event                    int
			t                        refit.Track
			covJSON, keysJSON        string
			chi2, ndf                sql.NullFloat64
			dca2d, dca2dErr          sql.NullFloat64
			dca, dcaErr              sql.NullFloat64
			xy, xyErr, zDCA, zDCAErr sql.NullFloat64
		)
		if err := rows.Scan(&event, &t.ID, &t.SiliconSeed, &t.TPCSeed, &t.Crossing, &t.Charge,
			&t.Pos.X, &t.Pos.Y, &t.Pos.Z, &t.Mom.X, &t.Mom.Y, &t.Mom.Z, &covJSON, &chi2, &ndf,
			&dca2d, &dca2dErr, &dca, &dcaErr, &xy, &xyErr, &zDCA, &zDCAErr, &keysJSON); err != nil {
			return nil, err
		}
		if t.Cov, err = decodeCov(covJSON); err != nil {
			return nil, fmt.Errorf("track %d covariance: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(keysJSON), &t.ClusterKeys); err != nil {
			return nil, fmt.Errorf("track %d cluster keys: %w", t.ID, err)
		}
		t.ChiSquare, t.NDF = fromNullable(chi2), fromNullable(ndf)
		t.DCA2D, t.DCA2DError = fromNullable(dca2d), fromNullable(dca2dErr)
		t.DCA, t.DCAError = fromNullable(dca), fromNullable(dcaErr)
		t.DCA3DXY, t.DCA3DXYError = fromNullable(xy), fromNullable(xyErr)
		t.DCA3DZ, t.DCA3DZError = fromNullable(zDCA), fromNullable(zDCAErr)

		if len(out) == 0 || out[len(out)-1].Event != event {
			out = append(out, EventTracks{Event: event})
		}
		track := &t
		out[len(out)-1].Tracks = append(out[len(out)-1].Tracks, track)
		byKey[trackKey{event, t.ID}] = track
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	states, err := db.Query(`
		SELECT event, track_id, path_length, x, y, z, px, py, pz, cov_json, cluster_key
		FROM refit_states WHERE run_id = ? ORDER BY event, track_id, seq`, runID)
	if err != nil {
		return nil, err
	}
	defer states.Close()

	for states.Next() {
		var (
			key     trackKey
			s       refit.TrackState
			covJSON string
			cluster int64
		)
		if err := states.Scan(&key.event, &key.id, &s.PathLength,
			&s.Pos.X, &s.Pos.Y, &s.Pos.Z, &s.Mom.X, &s.Mom.Y, &s.Mom.Z, &covJSON, &cluster); err != nil {
			return nil, err
		}
		if s.Cov, err = decodeCov(covJSON); err != nil {
			return nil, fmt.Errorf("state covariance: %w", err)
		}
		s.ClusterKey = trkr.ClusterKey(cluster)
		if t, ok := byKey[key]; ok {
			t.States = append(t.States, s)
		}
	}
	return out, states.Err()
}

// encodeCov stores the packed covariance as a JSON array. Non-finite
// entries, which JSON cannot represent, are written as null.
func encodeCov(c geom.Cov6) ([]byte, error) {
	entries := make([]*float64, len(c))
	for i := range c {
		if v := c[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			entries[i] = &v
		}
	}
	return json.Marshal(entries)
}

// decodeCov reads a covariance written by encodeCov; null entries become NaN.
func decodeCov(data string) (geom.Cov6, error) {
	var c geom.Cov6
	var entries []*float64
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return c, err
	}
	if len(entries) != len(c) {
		return c, fmt.Errorf("covariance has %d entries, want %d", len(entries), len(c))
	}
	for i, v := range entries {
		if v == nil {
			c[i] = math.NaN()
		} else {
			c[i] = *v
		}
	}
	return c, nil
}
