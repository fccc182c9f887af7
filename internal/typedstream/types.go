// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typedstream

import "fmt"

// Marker bytes of the typedstream framing. A length byte at or above
// referenceTag is not a length at all but an index into the table of
// already-seen entries, offset by the tag.
const (
	startMarker    byte = 0x84 // start of a new object
	emptyMarker    byte = 0x85 // no data; end of an inheritance chain
	endMarker      byte = 0x86 // last byte of an object
	referenceTag   byte = 0x92
	encodingMarker byte = 0x95 // embedded type encoding follows
)

// headerSize is the fixed preamble at the start of every archive. Its
// contents identify the stream version and byte order and are not needed
// to decode the payload.
const headerSize = 16

// A Class identifies one link of an archived inheritance chain.
type Class struct {
	Name    string
	Version uint8
}

func (c Class) String() string {
	return fmt.Sprintf("%s v%d", c.Name, c.Version)
}

// A TypeKind says how the bytes following a type signature should be
// decoded.
type TypeKind int

const (
	// Utf8String is a length-prefixed UTF-8 string.
	Utf8String TypeKind = iota
	// EmbeddedData is a nested type-signature-plus-values block.
	EmbeddedData
	// Object is a class chain or a reference to an archived object.
	Object
	// SignedInt and UnsignedInt are single-byte integers in the archives
	// we support.
	SignedInt
	UnsignedInt
	// InlineName is a class name literal reused as a synthetic type entry;
	// the format records a class's own name as a pseudo-type for recursive
	// references.
	InlineName
	// Unknown preserves a type code we do not recognize.
	Unknown
)

// A Type is one entry of a type signature list.
type Type struct {
	Kind TypeKind
	Name string // set when Kind is InlineName
	Raw  byte   // set when Kind is Unknown
}

func typeFromByte(b byte) Type {
	switch b {
	case 0x40: // '@'
		return Type{Kind: Object}
	case 0x2B: // '+'
		return Type{Kind: Utf8String}
	case 0x2A: // '*'
		return Type{Kind: EmbeddedData}
	case 0x69: // 'i'
		return Type{Kind: UnsignedInt}
	case 0x49: // 'I'
		return Type{Kind: SignedInt}
	default:
		return Type{Kind: Unknown, Raw: b}
	}
}

// inlineName builds the synthetic singleton type entry for a class name.
func inlineName(name string) []Type {
	return []Type{{Kind: InlineName, Name: name}}
}

// A ValueKind tags one decoded output value.
type ValueKind int

const (
	// Text is decoded string data.
	Text ValueKind = iota
	// Number is a single-byte integer widened to 32 bits.
	Number
	// RawByte carries an unrecognized type code verbatim.
	RawByte
	// ClassDescriptor is a resolved class name and version.
	ClassDescriptor
	// NewObject marks the start of an archived object.
	NewObject
	// BackReference is an index into the object table.
	BackReference
	// Placeholder reserves an object's slot before its data is known.
	Placeholder
	// Empty is an object position that resolved to nothing.
	Empty
)

// A Value is one decoded output of the stream. Which payload field is
// meaningful depends on Kind.
type Value struct {
	Kind   ValueKind
	Text   string
	Number int32
	Byte   byte
	Class  Class
	Index  int
}

// entryKind distinguishes the two shapes stored in the object table.
type entryKind int

const (
	objectEntry entryKind = iota
	classEntry
)

// An archivable is one entry of the object table: either the decoded
// values of an object or a class descriptor. Entries are append-only and
// never mutated after registration; back-references rely on their
// positions staying stable for the remainder of the parse.
type archivable struct {
	kind   entryKind
	values []Value
	class  Class
}
