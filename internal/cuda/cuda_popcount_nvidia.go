//go:build cuda

package cuda

/*
#cgo LDFLAGS: -L${SRCDIR} -lkernel -L/usr/local/cuda/lib64 -lcudart
#include "bindings.h"
*/
import "C"
import "log"

// PopcountAnd offloads the bitwise AND and population count of two
// transaction bitmaps to the GPU. The intersection is written to out
// and the number of set bits returned; the eclat bitmap variant uses
// it for its support counting when transaction weights are uniform.
func PopcountAnd(a, b, out []uint64) int {
	n := len(a)
	if n == 0 || len(b) != n || len(out) != n {
		return -1
	}
	log.Printf("[CUDA] Offloading %d-word bitmap intersection to GPU", n)
	cnt := C.PopcountAndCUDA(
		(*C.ulonglong)(&a[0]),
		(*C.ulonglong)(&b[0]),
		(*C.ulonglong)(&out[0]),
		C.int(n),
	)
	return int(cnt)
}
