package fitengine

// pdgCharge maps the supported PDG particle codes to their charge.
var pdgCharge = map[int]float64{
	11:    -1, // e-
	-11:   1,  // e+
	13:    -1, // mu-
	-13:   1,  // mu+
	211:   1,  // pi+
	-211:  -1, // pi-
	321:   1,  // K+
	-321:  -1, // K-
	2212:  1,  // p
	-2212: -1, // anti-p
}

// ChargeOf returns the charge of the particle with PDG code pid.
func ChargeOf(pid int) (float64, bool) {
	q, ok := pdgCharge[pid]
	return q, ok
}
