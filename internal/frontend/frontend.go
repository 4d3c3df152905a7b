// Package frontend implements the front-end driver abstraction: a
// small polymorphic surface every radio driver implements, a
// compiled-in name table mapping a `device = <name>` config value to
// a driver, and the sample-producer loop that feeds filter.Input.
package frontend

import (
	"context"
	"fmt"

	"github.com/cwsl/radiod/internal/filter"
	"github.com/cwsl/radiod/internal/rerr"
)

// Status is what Setup fills in once the driver has probed hardware.
type Status struct {
	SampRate float64
	IsReal   bool
}

// Driver is the capability set every concrete front end implements.
// Gain and Atten are optional; a driver that doesn't support one
// returns ErrUnsupported from it, which callers treat as a warning,
// not a failure — a fixed-gain device is still a usable device.
type Driver interface {
	Setup(section map[string]string) (Status, error)
	Start(ctx context.Context, in *filter.Input) error
	Tune(hz float64) (actualHz float64, err error)
	Gain(db float64) (float64, error)
	Atten(db float64) (float64, error)
}

// ErrUnsupported is returned by Gain/Atten when the concrete driver
// has no such control (e.g. the fixed-gain signal generator).
var ErrUnsupported = fmt.Errorf("frontend: operation not supported by this driver")

// Factory constructs a fresh, unconfigured driver instance.
type Factory func() Driver

var registry = map[string]Factory{}

// Register adds a driver factory to the compiled-in name table,
// keyed by the `device = <name>` value a hardware section uses.
// Intended to be called from each driver's package init().
func Register(name string, f Factory) { registry[name] = f }

// New looks up a driver by name. A missing driver is a fatal
// HardwareSetupError: there is no dynamic loading fallback, only the
// compiled-in table.
func New(name string) (Driver, error) {
	f, ok := registry[name]
	if !ok {
		return nil, rerr.HardwareSetup(fmt.Errorf("frontend: no compiled-in driver named %q", name))
	}
	return f(), nil
}

func init() {
	Register("sig_gen", func() Driver { return NewSigGen() })
}
