// Package fitengine defines the capability interface of a trajectory
// fitting engine and the state types that cross it.
//
// States are 6D (x, y, z, px, py, pz) with a 6x6 covariance and the plane
// they live on. The local (u, v) coordinates of a state are its position
// projected on the plane's axes relative to the plane origin.
package fitengine
