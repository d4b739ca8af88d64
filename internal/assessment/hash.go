package assessment

// Seed derives the per-student shuffle seed from a student identifier.
// It is the classic (h<<5)-h+c rolling hash folded into a signed 32-bit
// integer on every step, absolute value taken — the same function the web
// portal applies to the user id, so server- and client-derived orders agree.
// An empty identifier hashes the literal "guest".
//
// Collisions between students are possible and acceptable: two students with
// colliding seeds merely see the same question order.
func Seed(studentID string) int64 {
	s := studentID
	if s == "" {
		s = "guest"
	}

	var h int32
	for _, r := range s {
		h = h<<5 - h + int32(r)
	}

	if h < 0 {
		return -int64(h)
	}
	return int64(h)
}
