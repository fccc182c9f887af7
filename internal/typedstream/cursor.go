// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typedstream

import (
	"fmt"
	"unicode/utf8"

	"github.com/chatvault/imessage/internal/derrors"
)

// A cursor is a bounds-checked sequential reader over the raw archive
// bytes. The buffer is borrowed, never copied or mutated. Every read
// either advances the offset by exactly the number of bytes consumed or
// fails without moving it.
type cursor struct {
	data []byte
	off  int
}

func (c *cursor) done() bool { return c.off >= len(c.data) }

func (c *cursor) remaining() int { return len(c.data) - c.off }

// readByte returns the byte at the current offset and advances past it.
func (c *cursor) readByte() (byte, error) {
	if c.done() {
		return 0, fmt.Errorf("offset %d: %w", c.off, derrors.UnexpectedEOF)
	}
	b := c.data[c.off]
	c.off++
	return b, nil
}

// readBytes returns a view of the next n bytes and advances past them.
func (c *cursor) readBytes(n int) ([]byte, error) {
	if n > c.remaining() {
		return nil, fmt.Errorf("offset %d: need %d bytes, have %d: %w",
			c.off, n, c.remaining(), derrors.UnexpectedEOF)
	}
	buf := c.data[c.off : c.off+n]
	c.off += n
	return buf, nil
}

// readString decodes the next n bytes as UTF-8 text.
func (c *cursor) readString(n int) (string, error) {
	buf, err := c.readBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("offset %d: %w", c.off-n, derrors.InvalidText)
	}
	return string(buf), nil
}

// peekByte returns the byte at the current offset without advancing.
func (c *cursor) peekByte() (byte, error) {
	if c.done() {
		return 0, fmt.Errorf("offset %d: %w", c.off, derrors.UnexpectedEOF)
	}
	return c.data[c.off], nil
}

// peekNextByte returns the byte after the current offset without advancing.
func (c *cursor) peekNextByte() (byte, error) {
	if c.off+1 >= len(c.data) {
		return 0, fmt.Errorf("offset %d: %w", c.off+1, derrors.UnexpectedEOF)
	}
	return c.data[c.off+1], nil
}

// skip advances past n bytes without returning them.
func (c *cursor) skip(n int) error {
	_, err := c.readBytes(n)
	return err
}
