package frontend

import (
	"context"
	"fmt"

	"github.com/cwsl/radiod/internal/filter"
)

// stub is a named hardware driver with no backing implementation in
// this tree — registered so a config naming it fails with a clear
// HardwareSetupError instead of "no compiled-in driver named %q",
// and so the name table matches every device the upstream project
// supports.
type stub struct{ name string }

func (s *stub) Setup(map[string]string) (Status, error) {
	return Status{}, fmt.Errorf("frontend: %s driver requires hardware and vendor libraries not present in this build", s.name)
}
func (s *stub) Start(context.Context, *filter.Input) error { return ErrUnsupported }
func (s *stub) Tune(float64) (float64, error)              { return 0, ErrUnsupported }
func (s *stub) Gain(float64) (float64, error)              { return 0, ErrUnsupported }
func (s *stub) Atten(float64) (float64, error)             { return 0, ErrUnsupported }

func init() {
	for _, name := range []string{"rx888", "airspy", "airspyhf", "funcube", "rtlsdr", "sdrplay"} {
		n := name
		Register(n, func() Driver { return &stub{name: n} })
	}
}
