// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package typedstream decodes Apple's legacy typedstream binary archival
// format, as used for the NSAttributedString payloads stored in the
// attributedBody column of the Messages database.
//
// The format is self-describing: type signatures and class descriptors are
// serialized inline the first time they occur and referenced by table
// index afterwards. A single Decode call owns a byte cursor plus two
// append-only tables (types and objects) that those references resolve
// into; nothing is shared across calls, so concurrent decodes of the same
// or different buffers need no synchronization.
package typedstream

import (
	"fmt"

	"github.com/chatvault/imessage/internal/derrors"
)

// A decoder holds the state of one Decode invocation.
type decoder struct {
	cur     cursor
	types   [][]Type
	objects []archivable
}

func newDecoder(data []byte) *decoder {
	return &decoder{cur: cursor{data: data}}
}

// Decode parses data as a typedstream archive and returns its top-level
// entries in stream order, one ordered value list per entry.
//
// Malformed input is reported as an error wrapping one of
// derrors.UnexpectedEOF, derrors.InvalidText, derrors.UnresolvedReference
// or derrors.MalformedClassChain; Decode never panics on bad bytes.
// Unrecognized type codes are not errors: they decode to RawByte values.
func Decode(data []byte) (_ [][]Value, err error) {
	defer derrors.Wrap(&err, "typedstream.Decode(%d bytes)", len(data))
	return newDecoder(data).parse()
}

// lengthOrRef classifies the overloaded length byte: values below
// referenceTag are literal lengths, values at or above it encode an index
// into a lookup table. This is the single point where the ambiguity is
// resolved.
func lengthOrRef(b byte) (n int, isRef bool) {
	if b >= referenceTag {
		return int(b - referenceTag), true
	}
	return int(b), false
}

// readPointer reads one byte that must be a back-reference and returns the
// index it encodes.
func (d *decoder) readPointer() (int, error) {
	b, err := d.cur.readByte()
	if err != nil {
		return 0, err
	}
	idx, isRef := lengthOrRef(b)
	if !isRef {
		return 0, fmt.Errorf("pointer byte 0x%02x below reference tag: %w", b, derrors.MalformedClassChain)
	}
	return idx, nil
}

// checkObject verifies that idx is a valid object table index. Referencing
// an entry that has not been registered yet is a malformed stream, not
// undefined behavior.
func (d *decoder) checkObject(idx int) error {
	if idx >= len(d.objects) {
		return fmt.Errorf("object %d of %d: %w", idx, len(d.objects), derrors.UnresolvedReference)
	}
	return nil
}

// registerObject appends e to the object table and returns its index.
func (d *decoder) registerObject(e archivable) int {
	d.objects = append(d.objects, e)
	return len(d.objects) - 1
}

// registerTypes appends a type list to the type table and returns its
// index.
func (d *decoder) registerTypes(types []Type) int {
	d.types = append(d.types, types)
	return len(d.types) - 1
}

// getType resolves the type list at the current position: a fresh
// length-prefixed list of type code bytes, an empty list at the end of an
// object, or a back-reference to a previously registered list.
func (d *decoder) getType() ([]Type, error) {
	b, err := d.cur.peekByte()
	if err != nil {
		return nil, err
	}
	switch b {
	case startMarker:
		if err := d.cur.skip(1); err != nil {
			return nil, err
		}
		n, err := d.cur.readByte()
		if err != nil {
			return nil, err
		}
		raw, err := d.cur.readBytes(int(n))
		if err != nil {
			return nil, err
		}
		types := make([]Type, len(raw))
		for i, tb := range raw {
			types[i] = typeFromByte(tb)
		}
		d.registerTypes(types)
		return types, nil
	case endMarker:
		// End of the current object; no values follow.
		return nil, nil
	default:
		// Homogeneous containers such as dictionaries repeat the same
		// pointer byte back to back; collapse the run to one pointer.
		for d.cur.remaining() >= 2 {
			cur, err := d.cur.peekByte()
			if err != nil {
				return nil, err
			}
			next, err := d.cur.peekNextByte()
			if err != nil {
				return nil, err
			}
			if cur != next {
				break
			}
			if err := d.cur.skip(1); err != nil {
				return nil, err
			}
		}
		idx, err := d.readPointer()
		if err != nil {
			return nil, err
		}
		if idx >= len(d.types) {
			return nil, fmt.Errorf("type list %d of %d: %w", idx, len(d.types), derrors.UnresolvedReference)
		}
		return d.types[idx], nil
	}
}

// readClass decodes the chain of class descriptors at the current
// position, registering each link in both tables, and returns the object
// table index the position resolves to. ok is false when the position
// designates no entry at all.
//
// A chain is terminated either by the empty-chain marker or by resolving
// to a previously seen entry through a back-reference. After walking a
// chain the most recently registered entry is returned, so the caller sees
// the deepest link.
func (d *decoder) readClass() (idx int, ok bool, err error) {
	b, err := d.cur.peekByte()
	if err != nil {
		return 0, false, err
	}
	switch b {
	case startMarker:
		// Nested headers repeat the start marker; skip the run and
		// process it once.
		for {
			b, err := d.cur.peekByte()
			if err != nil {
				return 0, false, err
			}
			if b != startMarker {
				break
			}
			if err := d.cur.skip(1); err != nil {
				return 0, false, err
			}
		}
		n, err := d.cur.readByte()
		if err != nil {
			return 0, false, err
		}
		if ref, isRef := lengthOrRef(n); isRef {
			// The "length" is really a reference to an earlier class.
			if err := d.checkObject(ref); err != nil {
				return 0, false, err
			}
			return ref, true, nil
		}
		name, err := d.cur.readString(int(n))
		if err != nil {
			return 0, false, err
		}
		version, err := d.cur.readByte()
		if err != nil {
			return 0, false, err
		}
		d.registerTypes(inlineName(name))
		d.registerObject(archivable{kind: classEntry, class: Class{Name: name, Version: version}})
		if _, ok, err := d.readClass(); err != nil {
			return 0, false, err
		} else if !ok {
			return 0, false, nil
		}
		return len(d.objects) - 1, true, nil
	case emptyMarker:
		if err := d.cur.skip(1); err != nil {
			return 0, false, err
		}
		if len(d.objects) == 0 {
			return 0, false, nil
		}
		return len(d.objects) - 1, true, nil
	case encodingMarker:
		values, err := d.readEmbeddedData()
		if err != nil {
			return 0, false, err
		}
		return d.registerObject(archivable{kind: objectEntry, values: values}), true, nil
	default:
		idx, err := d.readPointer()
		if err != nil {
			return 0, false, err
		}
		if err := d.checkObject(idx); err != nil {
			return 0, false, err
		}
		return idx, true, nil
	}
}

// readObject resolves the object at the current position: a new class
// chain, an empty object, or a back-reference to an archived entry.
func (d *decoder) readObject() (idx int, ok bool, err error) {
	b, err := d.cur.peekByte()
	if err != nil {
		return 0, false, err
	}
	switch b {
	case startMarker:
		return d.readClass()
	case emptyMarker:
		if err := d.cur.skip(1); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	default:
		idx, err := d.readPointer()
		if err != nil {
			return 0, false, err
		}
		if err := d.checkObject(idx); err != nil {
			return 0, false, err
		}
		return idx, true, nil
	}
}

// readText reads a length-prefixed UTF-8 string.
func (d *decoder) readText() (string, error) {
	n, err := d.cur.readByte()
	if err != nil {
		return "", err
	}
	return d.cur.readString(int(n))
}

// readEmbeddedData decodes a nested type-signature-plus-values block. The
// leading marker byte has already been classified by the caller and is
// skipped here.
func (d *decoder) readEmbeddedData() ([]Value, error) {
	if err := d.cur.skip(1); err != nil {
		return nil, err
	}
	types, err := d.getType()
	if err != nil {
		return nil, err
	}
	return d.readValues(types)
}

// readValues produces one output value per type code, in order, splicing
// nested results inline.
func (d *decoder) readValues(types []Type) ([]Value, error) {
	var out []Value
	for _, t := range types {
		switch t.Kind {
		case Utf8String:
			s, err := d.readText()
			if err != nil {
				return nil, err
			}
			out = append(out, Value{Kind: Text, Text: s})
		case EmbeddedData:
			values, err := d.readEmbeddedData()
			if err != nil {
				return nil, err
			}
			out = append(out, values...)
		case Object:
			idx, ok, err := d.readObject()
			if err != nil {
				return nil, err
			}
			if !ok {
				out = append(out, Value{Kind: Empty})
				continue
			}
			switch e := d.objects[idx]; e.kind {
			case objectEntry:
				out = append(out, e.values...)
			case classEntry:
				out = append(out, Value{Kind: ClassDescriptor, Class: e.class})
			}
		case SignedInt, UnsignedInt:
			// Both widths are a single byte in the archives we support.
			b, err := d.cur.readByte()
			if err != nil {
				return nil, err
			}
			out = append(out, Value{Kind: Number, Number: int32(b)})
		case InlineName:
			out = append(out, Value{Kind: Text, Text: t.Name})
		case Unknown:
			out = append(out, Value{Kind: RawByte, Byte: t.Raw})
		}
	}
	return out, nil
}

// parse drives the whole buffer: skip the preamble, then decode one
// type-signature-plus-values entry at a time until the cursor reaches the end.
func (d *decoder) parse() ([][]Value, error) {
	if err := d.cur.skip(headerSize); err != nil {
		return nil, err
	}
	var out [][]Value
	for !d.cur.done() {
		b, err := d.cur.peekByte()
		if err != nil {
			return nil, err
		}
		if b == endMarker {
			if err := d.cur.skip(1); err != nil {
				return nil, err
			}
			continue
		}
		types, err := d.getType()
		if err != nil {
			return nil, err
		}
		values, err := d.readValues(types)
		if err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, nil
}
