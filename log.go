// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is the engine's ambient logging facility. The teacher
// (go-mdns-sd) gates every log.Printf call behind an integer logLevel;
// this keeps that exact shape but backs it with a structured logger so
// that messages carry fields (host, agent key, record) instead of being
// interpolated into a format string.
type logger struct {
	level *zap.AtomicLevel
	base  *zap.Logger
}

func newLogger() *logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	base, err := cfg.Build()
	if err != nil {
		// zap.NewProductionConfig().Build() only fails on a broken sink
		// registration; fall back to a no-op logger rather than panic
		// inside a library constructor.
		base = zap.NewNop()
	}
	return &logger{level: &level, base: base}
}

// setVerbose implements Engine.SetVerbose: verbose enables debug output
// (the engine logs each message it sends); non-verbose only logs
// warnings and above (send failures, transceiver interface failures).
// It affects only the logger it is called on: a udpTransceiver builds
// its own logger, which logs malformed datagrams at debug.
func (l *logger) setVerbose(verbose bool) {
	if verbose {
		l.level.SetLevel(zapcore.DebugLevel)
	} else {
		l.level.SetLevel(zapcore.WarnLevel)
	}
}

func (l *logger) debug(msg string, fields ...zap.Field) { l.base.Debug(msg, fields...) }
func (l *logger) warn(msg string, fields ...zap.Field)  { l.base.Warn(msg, fields...) }
func (l *logger) error(msg string, fields ...zap.Field) { l.base.Error(msg, fields...) }
