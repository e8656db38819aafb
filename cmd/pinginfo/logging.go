// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger returns the run's logger: warnings and errors go to stderr (all
// levels when debugging), and optionally everything additionally goes as
// JSON to a rotated log file. Keeping the console output terse matters, as
// the live table rendering shares the terminal with it.
func newLogger(debug bool, logfile string) *zap.Logger {
	consolelevel := zapcore.WarnLevel
	filelevel := zapcore.InfoLevel
	if debug {
		consolelevel = zapcore.DebugLevel
		filelevel = zapcore.DebugLevel
	}
	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			consolelevel),
	}
	if logfile != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   logfile,
				MaxSize:    10, // MiB
				MaxBackups: 3,
				MaxAge:     28, // days
			}),
			filelevel))
	}
	return zap.New(zapcore.NewTee(cores...))
}
