// Copyright 2025 The Ultraverse Authors
// This file is part of Ultraverse.
//
// Ultraverse is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ultraverse is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Ultraverse. If not, see <http://www.gnu.org/licenses/>.

// Package logutil builds the *zap.Logger instances every long-lived
// component takes as a constructor argument, per spec.md §9's
// "global logger and mutable map -> capability parameter" redesign
// note. There is no package-level default logger; callers that don't
// wire one explicitly use a discarding logger from Nop.
package logutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the root logger built by New.
type Options struct {
	// Verbose enables debug-level logging globally (-v on the CLIs).
	Verbose bool
	// Development switches to zap's human-readable console encoder
	// instead of JSON, matching -V (verbose + readable) in spec.md §6.
	Development bool
	// DebugSubsystems names the subsystems that Subsystem bumps to
	// debug level regardless of Verbose, wiring
	// statelogd.developmentFlags (SPEC_FULL.md "supplemented features").
	// New itself does not read it.
	DebugSubsystems []string
}

// New builds a root *zap.Logger honoring Options. Subsystem loggers are
// then derived with Named plus, when listed in DebugSubsystems, their
// own debug-level core.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// Subsystem derives a named child logger, forcing debug level if name
// is present in debugSubsystems even when the root logger is at info.
// zap has no direct way to *lower* a shared AtomicLevel for one named
// child only, so a forced-debug subsystem gets its own independent core
// built at debug level rather than inheriting root's.
func Subsystem(root *zap.Logger, name string, debugSubsystems []string) *zap.Logger {
	for _, d := range debugSubsystems {
		if d != name {
			continue
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		if l, err := cfg.Build(); err == nil {
			return l.Named(name)
		}
		break
	}
	return root.Named(name)
}

// Nop returns a logger that discards everything, used by tests and by
// components whose caller didn't wire a logger.
func Nop() *zap.Logger { return zap.NewNop() }
