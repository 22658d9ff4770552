// Package refit refits track candidates into precision trajectories.
//
// For each candidate the Refitter builds measurements from the candidate's
// clusters, seeds and runs a fit engine, then assembles an output track
// carrying the vertex state, the DCA observables and one state per fitted
// cluster, plus interpolated states for clusters on disabled layers.
// Candidates that are rejected or fail to fit are erased from the event's
// TrackMap.
//
// A Refitter processes one event at a time and is not safe for concurrent
// use.
package refit
