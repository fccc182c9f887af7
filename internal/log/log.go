// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log supports structured and unstructured logging with levels.
package log

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// labelKey is the type of the context key for labels attached to every
// entry logged with that context.
type labelKey struct{}

// NewContextWithLabel creates a new context from ctx that attaches a label
// to all log entries made with it.
func NewContextWithLabel(ctx context.Context, key, value string) context.Context {
	labels, _ := ctx.Value(labelKey{}).(map[string]string)
	m := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		m[k] = v
	}
	m[key] = value
	return context.WithValue(ctx, labelKey{}, m)
}

// SetLevel sets the minimum level that will be logged. Unparseable level
// strings leave the current level unchanged.
func SetLevel(level string) {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	logger.SetLevel(l)
}

func entry(ctx context.Context) *logrus.Entry {
	labels, _ := ctx.Value(labelKey{}).(map[string]string)
	e := logrus.NewEntry(logger)
	for k, v := range labels {
		e = e.WithField(k, v)
	}
	return e
}

// Infof logs a formatted string at the Info level.
func Infof(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Infof(format, args...)
}

// Errorf logs a formatted string at the Error level.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Errorf(format, args...)
}

// Debugf logs a formatted string at the Debug level.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Debugf(format, args...)
}

// Warningf logs a formatted string at the Warning level.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Warningf(format, args...)
}

// Fatalf is equivalent to Errorf followed by exiting the program.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Fatalf(format, args...)
}

// Info logs arg at the Info level.
func Info(ctx context.Context, arg interface{}) { entry(ctx).Info(arg) }

// Error logs arg at the Error level.
func Error(ctx context.Context, arg interface{}) { entry(ctx).Error(arg) }

// Debug logs arg at the Debug level.
func Debug(ctx context.Context, arg interface{}) { entry(ctx).Debug(arg) }

// Fatal is equivalent to Error followed by exiting the program.
func Fatal(ctx context.Context, arg interface{}) { entry(ctx).Fatal(arg) }
