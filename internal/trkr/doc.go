// Package trkr is the tracker data model consumed by the refit: cluster
// keys and detector identifiers, clusters and the stores that serve their
// corrected global positions, detector surfaces, and the silicon and TPC
// seeds that make up track candidates.
//
// The refit only reads from this package. Stores are event scoped and are
// not safe for concurrent mutation.
package trkr
