// Command radiod is the multi-channel software radio receiver daemon:
// it loads a config file naming one front end and zero or more
// channel groups, then runs until signalled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwsl/radiod/internal/config"
	"github.com/cwsl/radiod/internal/engine"
	"github.com/cwsl/radiod/internal/rerr"
	"github.com/cwsl/radiod/internal/rlog"
	"github.com/cwsl/radiod/internal/sysexits"
)

// Version is set by the release build; "dev" for a local build.
var Version = "dev"

// GracePeriod is how long Run waits after a stop signal before forcing
// a hard context cancellation, per the INT/QUIT/TERM signal contract.
const GracePeriod = time.Second

type verboseFlag int

func (v *verboseFlag) String() string { return fmt.Sprintf("%d", *v) }
func (v *verboseFlag) Set(string) error {
	*v++
	return nil
}
func (v *verboseFlag) IsBoolFlag() bool { return true }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("radiod", flag.ContinueOnError)
	name := fs.String("N", "", "instance name (defaults to config path)")
	planSeconds := fs.Int("p", 0, "transform planning time limit, seconds")
	version := fs.Bool("V", false, "print version and exit")
	var verbose verboseFlag
	fs.Var(&verbose, "v", "raise verbosity (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: radiod [-N name] [-p seconds] [-v] [-V] config-path\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return sysexits.Usage
	}
	if *version {
		fmt.Println("radiod", Version)
		return sysexits.OK
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return sysexits.Usage
	}
	configPath := fs.Arg(0)

	rlog.SetVerbosity(int(verbose))

	instanceName := *name
	if instanceName == "" {
		instanceName = configPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return reportAndExit(err)
	}
	if cfg.Global.Description == "" {
		cfg.Global.Description = instanceName
	}
	if *planSeconds != 0 {
		cfg.Global.FFTTimeLimit = *planSeconds
	}

	var presets *config.Presets
	if cfg.Global.PresetsFile != "" {
		presets, err = config.LoadPresets(cfg.Global.PresetsFile)
		if err != nil {
			return reportAndExit(err)
		}
	}

	iface, err := engine.DefaultInterface(cfg.Global.Iface)
	if err != nil {
		return reportAndExit(rerr.OutputBind(err))
	}

	eng, err := engine.New(cfg, presets, iface)
	if err != nil {
		return reportAndExit(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGPIPE, syscall.SIGUSR1, syscall.SIGUSR2)

	// gotSignal fires the instant a stop signal arrives, before
	// RequestStop is even called, so the race below can never see
	// Run's early return without also seeing this marker.
	gotSignal := make(chan struct{}, 1)
	exitCode := make(chan int, 1)

	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGUSR1:
				rlog.Bump(1)
			case syscall.SIGUSR2:
				rlog.Bump(-1)
			case syscall.SIGPIPE:
				// ignored
			case syscall.SIGTERM:
				gotSignal <- struct{}{}
				eng.RequestStop()
				time.Sleep(GracePeriod)
				cancel()
				exitCode <- sysexits.OK
				return
			default: // os.Interrupt (INT), SIGQUIT
				gotSignal <- struct{}{}
				eng.RequestStop()
				time.Sleep(GracePeriod)
				cancel()
				exitCode <- sysexits.Software
				return
			}
		}
	}()

	runErr := eng.Run(ctx)

	select {
	case <-gotSignal:
		return <-exitCode
	default:
	}

	if runErr != nil {
		return reportAndExit(runErr)
	}
	return sysexits.OK
}

func reportAndExit(err error) int {
	rlog.Printf("radiod: %v", err)
	var rerrErr *rerr.Error
	if e, ok := err.(*rerr.Error); ok {
		rerrErr = e
	}
	if rerrErr != nil {
		return rerrErr.ExitCode
	}
	return sysexits.Software
}
