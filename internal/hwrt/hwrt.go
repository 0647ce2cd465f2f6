//go:build !cgo_opencl

// Package hwrt adapts a hardware ray-tracing backend to
// internal/accel.HWIntersector. The real adapter (hwrt_opencl.go) only
// compiles under the cgo_opencl build tag and imports an OpenCL binding
// (github.com/hydroflame/gopencl/v1.2/cl); this file provides the
// same exported surface for the default (no cgo) build, so the CLI and
// internal/accel never need their own build tags to ask "is there a
// hardware backend available" — the answer is just always no here.
//
// The real ListDevices and New live in hwrt_opencl.go, gated entirely
// behind cgo/OpenCL headers being present on the build machine.
package hwrt

import (
	"errors"

	"github.com/prism-renderer/prism/internal/accel"
)

// ErrUnavailable is returned by every entry point when the binary was built
// without the cgo_opencl tag.
var ErrUnavailable = errors.New("hwrt: built without cgo_opencl; no hardware backend available")

// DeviceInfo describes one hardware device a backend could dispatch to.
type DeviceInfo struct {
	Name  string
	Type  string
	Speed float32
}

// Available reports whether this build was compiled with a hardware
// backend.
func Available() bool { return false }

// ListDevices enumerates hardware devices, mirroring
// opencl.GetPlatformInfo's flattened device list.
func ListDevices() ([]DeviceInfo, error) { return nil, ErrUnavailable }

// New constructs an accel.HWIntersector bound to the named device,
// matched by substring against the device name.
func New(deviceNameSubstring string) (accel.HWIntersector, error) { return nil, ErrUnavailable }
