// Package service selects the capture and emulation backends from per-OS
// preference lists (spec §7 "Backend creation", §9 preference-list
// decision); cmd/lanbridged wires the result into the coordinator. It is
// the one non-test package that imports every concrete capture/emulation
// backend.
package service

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/lanbridge/lanbridge/internal/capture"
	capturedummy "github.com/lanbridge/lanbridge/internal/capture/dummy"
	"github.com/lanbridge/lanbridge/internal/capture/evdev"
	capturepor "github.com/lanbridge/lanbridge/internal/capture/portal"
	"github.com/lanbridge/lanbridge/internal/emulate"
	emulatedummy "github.com/lanbridge/lanbridge/internal/emulate/dummy"
	emulatepor "github.com/lanbridge/lanbridge/internal/emulate/portal"
	"github.com/lanbridge/lanbridge/internal/emulate/uinput"
	"github.com/lanbridge/lanbridge/internal/emulate/wlroots"
)

// EmulateOpener constructs an emulate.Backend, mirroring capture.Opener.
type EmulateOpener func(log zerolog.Logger) (emulate.Backend, error)

// SelectCapture tries each backend in the platform's preference list in
// order, returning the first that initializes successfully (spec §4.B/§7
// "Backend creation"; order per SPEC_FULL §4 supplement 1: on Linux,
// evdev -> portal -> dummy; elsewhere, portal -> dummy, since evdev is
// Linux-only).
func SelectCapture(ctx context.Context, log zerolog.Logger) (capture.Backend, error) {
	var openers []capture.Opener
	if runtime.GOOS == "linux" {
		openers = append(openers, evdev.Open)
	}
	openers = append(openers,
		func(ctx context.Context) (capture.Backend, error) { return capturepor.Open(ctx, log) },
		capturedummy.Open,
	)
	return tryCaptureOpeners(ctx, log, openers)
}

func tryCaptureOpeners(ctx context.Context, log zerolog.Logger, openers []capture.Opener) (capture.Backend, error) {
	for _, open := range openers {
		b, err := open(ctx)
		if err == nil {
			log.Info().Str("backend", b.Name()).Msg("capture backend selected")
			return b, nil
		}
		log.Warn().Err(err).Msg("capture backend unavailable, trying next")
	}
	return nil, fmt.Errorf("capture: every backend in the preference list failed")
}

// SelectEmulate mirrors SelectCapture for the emulation side. wlroots is
// tried ahead of uinput on Linux: a compositor-native virtual keyboard is
// preferred over the legacy /dev/uinput path when both are present.
func SelectEmulate(log zerolog.Logger) (emulate.Backend, error) {
	var openers []EmulateOpener
	if runtime.GOOS == "linux" {
		openers = append(openers, wlroots.Open, uinput.Open)
	}
	openers = append(openers, emulatepor.Open, func(zerolog.Logger) (emulate.Backend, error) { return emulatedummy.Open() })
	return tryEmulateOpeners(log, openers)
}

func tryEmulateOpeners(log zerolog.Logger, openers []EmulateOpener) (emulate.Backend, error) {
	for _, open := range openers {
		b, err := open(log)
		if err == nil {
			log.Info().Str("backend", b.Name()).Msg("emulation backend selected")
			return b, nil
		}
		log.Warn().Err(err).Msg("emulation backend unavailable, trying next")
	}
	return nil, fmt.Errorf("emulate: every backend in the preference list failed")
}
