package bench

import "github.com/chewxy/math32"

// MatMulFloat32 multiplies two n x n row-major matrices sequentially.
func MatMulFloat32(a, b []float32, n int) []float32 {
	c := make([]float32, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for k := 0; k < n; k++ {
				sum += a[i*n+k] * b[k*n+j]
			}
			c[i*n+j] = sum
		}
	}
	return c
}

// MatMulInt32 is the integer variant of MatMulFloat32. Overflow wraps.
func MatMulInt32(a, b []int32, n int) []int32 {
	c := make([]int32, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum int32
			for k := 0; k < n; k++ {
				sum += a[i*n+k] * b[k*n+j]
			}
			c[i*n+j] = sum
		}
	}
	return c
}

// CompareFloat32 returns the first index where got and want differ by more
// than tol relative to the magnitude of want (absolute below 1), or -1.
// Length mismatches report the first missing index.
func CompareFloat32(got, want []float32, tol float32) int {
	n := min(len(got), len(want))
	for i := 0; i < n; i++ {
		scale := math32.Max(1, math32.Abs(want[i]))
		if d := math32.Abs(got[i] - want[i]); !(d <= tol*scale) {
			return i
		}
	}
	if len(got) != len(want) {
		return n
	}
	return -1
}

// VectorAddMismatch returns the first index i with |a[i]+b[i]-c[i]| > tol, or -1.
func VectorAddMismatch(a, b, c []float32, tol float32) int {
	for i := range c {
		if i >= len(a) || i >= len(b) {
			return i
		}
		if d := math32.Abs(a[i] + b[i] - c[i]); !(d <= tol) {
			return i
		}
	}
	return -1
}

func compareInt32(got, want []int32) int {
	n := min(len(got), len(want))
	for i := 0; i < n; i++ {
		if got[i] != want[i] {
			return i
		}
	}
	if len(got) != len(want) {
		return n
	}
	return -1
}
