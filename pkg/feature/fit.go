package feature

// FitToLength returns a copy of seq with exactly n elements: the first n
// elements of seq when it is longer, otherwise seq followed by zero values.
// Every window in this package goes through this function so the padding
// policy cannot drift between encoders.
func FitToLength[T any](seq []T, n int) []T {
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, seq)
	return out
}
