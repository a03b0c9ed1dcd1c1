package datastructure

// EPS is the tolerance used when weights summed along a path are compared.
const EPS = 1e-6

// Le reports a <= b, where a may exceed b by at most EPS.
func Le(a, b float64) bool {
	return a <= b+EPS
}

// Gt reports a > b by more than EPS.
func Gt(a, b float64) bool {
	return !Le(a, b)
}
