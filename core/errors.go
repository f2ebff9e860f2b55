package core

import "fmt"

// ConfigError reports a violated configuration invariant detected before the
// core ever talks to the GPU (grid_size < 2*max_radius, boundary <= 0, and
// so on). Non-recoverable: the caller must fix the Config and retry.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// ResourceError wraps a GPU adapter/device/buffer allocation failure. Fatal
// for the run that produced it; a caller may construct a new Core to retry.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource: %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// DeviceLost is the error kind for a backend device-loss notification.
// Nothing in this repository constructs one: gpu.Device registers no
// device-lost callback and Core.Advance never returns a DeviceLost.
// Core.Rebuild, which tears down and recreates all five buffers and compute
// pipelines, is the recovery path a caller invokes itself.
type DeviceLost struct {
	Reason string
}

func (e *DeviceLost) Error() string {
	return fmt.Sprintf("device lost: %s", e.Reason)
}

// InstabilityError is advisory, not fatal: it names the stable id of an
// instance whose read-back position or velocity contained a NaN or Inf
// component. Nothing raises this from inside a dispatch — ScanForInstability
// detects it post-hoc from a read-back, and Core.Advance reseeds the
// offending instance rather than halting the run.
type InstabilityError struct {
	InstanceID uint32
	Field      string
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("instability: instance %d: %s is NaN or Inf", e.InstanceID, e.Field)
}
