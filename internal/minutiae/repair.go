package minutiae

// coordMask keeps the low 14 bits of a coordinate. The wire format
// reserves the top bit of each coordinate's high byte, so any value
// needing more than 14 bits came from a corrupt or historical encoding.
const coordMask = 0x3FFF

// Repair corrects out-of-domain coordinate and angle values. It is
// applied at every boundary crossing: immediately after any decode and
// immediately before any external matcher invocation. Coordinates keep
// their low 14 bits and are clamped into the image frame; the angle is
// wrapped into the matcher domain.
//
// Repair is idempotent: Repair(Repair(p)) == Repair(p).
func Repair(p Point) Point {
	p.X = clamp(p.X&coordMask, 0, ImageWidth-1)
	p.Y = clamp(p.Y&coordMask, 0, ImageHeight-1)
	p.Theta = WrapMatcher(p.Theta)
	return p
}

// RepairAll applies Repair to every point and returns a new set.
func RepairAll(s Set) Set {
	out := make(Set, len(s))
	for i, p := range s {
		out[i] = Repair(p)
	}
	return out
}
