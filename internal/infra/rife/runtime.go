package rife

import (
	"fmt"
	"os/exec"
	"sync"
)

// Runtime is the shared handle on the GPU-backed rife binary. Instances
// loaded concurrently (one per consumer) share a single refcounted handle;
// the last Release drops it. This keeps device ownership explicit instead
// of hiding it in process-wide state.
type Runtime struct {
	binary     string
	gpuID      int
	queueCount int
}

var (
	runtimeMu   sync.Mutex
	runtimeRefs int
	runtime     *Runtime
)

// AcquireRuntime returns the shared runtime, creating it on first use.
// queueCount is the device's compute queue count as configured by the
// deployment; 0 means unknown and disables lane validation downstream.
func AcquireRuntime(binary string, gpuID, queueCount int) (*Runtime, error) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeRefs == 0 {
		path, err := exec.LookPath(binary)
		if err != nil {
			return nil, fmt.Errorf("locate rife binary: %w", err)
		}
		if gpuID < 0 {
			return nil, fmt.Errorf("invalid GPU device %d", gpuID)
		}
		runtime = &Runtime{binary: path, gpuID: gpuID, queueCount: queueCount}
	} else if runtime.gpuID != gpuID {
		return nil, fmt.Errorf("runtime already acquired for GPU %d, requested %d", runtime.gpuID, gpuID)
	}

	runtimeRefs++
	return runtime, nil
}

// Release drops one reference; the last reference tears the handle down.
// Releasing without a matching acquisition is a programming error.
func (r *Runtime) Release() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeRefs == 0 {
		panic("rife: runtime released without matching acquire")
	}
	runtimeRefs--
	if runtimeRefs == 0 {
		runtime = nil
	}
}

// QueueCount reports the device's compute queue count, or 0 when unknown.
func (r *Runtime) QueueCount() int {
	return r.queueCount
}
