// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package derrors defines internal error values to categorize the different
// types of error semantics we support.
package derrors

import (
	"errors"
	"fmt"
)

//lint:file-ignore ST1012 prefixing error values with Err would stutter

var (
	// NotFound indicates that a requested row or entity was not found.
	NotFound = errors.New("not found")
	// InvalidArgument indicates that the input into a function is invalid in
	// some way.
	InvalidArgument = errors.New("invalid argument")

	// UnexpectedEOF indicates that a typedstream read requested more bytes
	// than remain in the buffer.
	UnexpectedEOF = errors.New("unexpected end of stream")
	// InvalidText indicates that a segment of a typedstream that should hold
	// text is not valid UTF-8.
	InvalidText = errors.New("invalid text")
	// UnresolvedReference indicates that a typedstream back-reference points
	// past the end of the table it indexes.
	UnresolvedReference = errors.New("unresolved reference")
	// MalformedClassChain indicates that a class inheritance chain did not
	// terminate with an empty marker or a valid reference before the input
	// ran out.
	MalformedClassChain = errors.New("malformed class chain")
)

// Add adds context to the error.
// The result cannot be unwrapped to recover the original error.
// It does nothing when *errp == nil.
//
// Example:
//
//	defer derrors.Add(&err, "copy(%s, %s)", src, dst)
//
// See Wrap for an equivalent function that allows
// the result to be unwrapped.
func Add(errp *error, format string, args ...interface{}) {
	if *errp != nil {
		*errp = fmt.Errorf("%s: %v", fmt.Sprintf(format, args...), *errp)
	}
}

// Wrap adds context to the error and allows
// unwrapping the result to recover the original error.
//
// Example:
//
//	defer derrors.Wrap(&err, "copy(%s, %s)", src, dst)
//
// See Add for an equivalent function that does not allow
// the result to be unwrapped.
func Wrap(errp *error, format string, args ...interface{}) {
	if *errp != nil {
		*errp = fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), *errp)
	}
}
