// Package geom holds the small amount of geometry the refit needs on top of
// gonum: beam-axis helpers for r3 vectors, the packed 6x6 covariance stored
// on output track states, and the rotation from detector XYZ into the
// radial/longitudinal frame used for DCA.
package geom
