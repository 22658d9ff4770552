// Package lineengine is a field-free reference implementation of
// fitengine.Engine.
//
// Tracks are straight lines. Each measurement is predicted where the line
// crosses its plane, and the line is estimated by Gauss-Newton weighted
// least squares with a Gaussian prior derived from the seed. Lines are
// parameterised by two transverse offsets and two slopes relative to a
// reference line through the measured positions, so a fit has four free
// parameters and 2n − 4 degrees of freedom. Forward and backward updates at
// point i are partial fits over points 0..i and i..N-1.
//
// Without a magnetic field the momentum magnitude is not measured, so
// fitted states carry the seed momentum magnitude along the fitted
// direction.
package lineengine
