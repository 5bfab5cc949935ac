//go:build !cuda

package cuda

// PopcountAnd is the CPU stub used when the engine is compiled
// without the 'cuda' build tag. It returns -1 so that callers fall
// back to their own population count loop; the eclat bitmap variant
// calls it, and checks the return value, on every intersection of a
// bag whose transaction weights are all 1.
func PopcountAnd(a, b, out []uint64) int {
	return -1
}
