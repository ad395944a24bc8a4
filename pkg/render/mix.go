package render

// Mix sums tracks sample by sample and divides by the track count.
// Shorter tracks are treated as silence past their end; silent (nil)
// tracks still count.
func Mix(tracks [][]float64) []float64 {
	if len(tracks) == 0 {
		return nil
	}
	n := 0
	for _, t := range tracks {
		n = max(n, len(t))
	}
	out := make([]float64, n)
	for _, t := range tracks {
		for i, v := range t {
			out[i] += v
		}
	}
	scale := 1 / float64(len(tracks))
	for i := range out {
		out[i] *= scale
	}
	return out
}
