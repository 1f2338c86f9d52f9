//go:build linux && (amd64 || arm64 || riscv64 || ppc64le || loong64)

package webcam

import "unsafe"

// Compile-time checks that the Go layouts match the kernel's 64-bit ABI.
// A mismatch makes one of these array lengths non-zero (or overflow).
var (
	_ [0]struct{} = [unsafe.Sizeof(v4l2Capability{}) - 104]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Fmtdesc{}) - 64]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2FrmsizeDiscrete{}) - 8]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2FrmsizeStepwise{}) - 24]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Frmsizeenum{}) - 44]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Fract{}) - 8]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Frmivalenum{}) - 52]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2PixFormat{}) - 48]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Format{}) - 208]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2RequestBuffers{}) - 20]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Buffer{}) - 88]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Control{}) - 8]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Queryctrl{}) - 68]struct{}{}
)
