// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typedstream

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chatvault/imessage/internal/derrors"
)

// archive prepends the fixed-size preamble that Decode skips.
func archive(payload ...byte) []byte {
	return append(make([]byte, headerSize), payload...)
}

func text(s string) Value  { return Value{Kind: Text, Text: s} }
func number(n int32) Value { return Value{Kind: Number, Number: n} }

func classValue(n string, v uint8) Value {
	return Value{Kind: ClassDescriptor, Class: Class{Name: n, Version: v}}
}

func TestLengthOrRef(t *testing.T) {
	tests := []struct {
		b       byte
		wantN   int
		wantRef bool
	}{
		{0x00, 0, false},
		{0x05, 5, false},
		{0x91, 0x91, false},
		{0x92, 0, true},
		{0x95, 3, true},
		{0xFF, 0x6D, true},
	}
	for _, test := range tests {
		n, isRef := lengthOrRef(test.b)
		if n != test.wantN || isRef != test.wantRef {
			t.Errorf("lengthOrRef(%#x) = %d, %t; want %d, %t",
				test.b, n, isRef, test.wantN, test.wantRef)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want [][]Value
	}{
		{
			name: "utf8 string",
			data: archive(startMarker, 1, '+', 5, 'H', 'e', 'l', 'l', 'o'),
			want: [][]Value{{text("Hello")}},
		},
		{
			name: "integers",
			data: archive(startMarker, 2, 'i', 'I', 7, 9),
			want: [][]Value{{number(7), number(9)}},
		},
		{
			name: "unknown type code passes through",
			data: archive(startMarker, 1, 'z'),
			want: [][]Value{{{Kind: RawByte, Byte: 'z'}}},
		},
		{
			name: "type list reused by back-reference",
			data: archive(
				startMarker, 1, '+', 3, 'a', 'b', 'c',
				referenceTag, 2, 'h', 'i',
			),
			want: [][]Value{{text("abc")}, {text("hi")}},
		},
		{
			name: "duplicated pointer run collapses to one",
			data: archive(
				startMarker, 1, '+', 3, 'a', 'b', 'c',
				referenceTag, referenceTag, 2, 'h', 'i',
			),
			want: [][]Value{{text("abc")}, {text("hi")}},
		},
		{
			name: "class chain resolves to deepest link",
			data: archive(
				startMarker, 1, '@',
				startMarker, 1, 'A', 1,
				startMarker, 1, 'B', 2,
				emptyMarker,
			),
			want: [][]Value{{classValue("B", 2)}},
		},
		{
			name: "empty object",
			data: archive(startMarker, 1, '@', emptyMarker),
			want: [][]Value{{{Kind: Empty}}},
		},
		{
			name: "embedded data spliced inline",
			data: archive(
				startMarker, 1, '*',
				startMarker, startMarker, 1, '+', 2, 'h', 'i',
			),
			want: [][]Value{{text("hi")}},
		},
		{
			name: "embedded encoding inside a class chain",
			data: archive(
				startMarker, 1, '@',
				startMarker, 1, 'A', 1,
				encodingMarker, startMarker, 1, '+', 2, 'h', 'i',
			),
			want: [][]Value{{text("hi")}},
		},
		{
			name: "end markers between entries",
			data: archive(
				startMarker, 1, '+', 2, 'o', 'k',
				endMarker, endMarker,
			),
			want: [][]Value{{text("ok")}},
		},
		{
			name: "empty buffer after header",
			data: archive(),
			want: nil,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Decode(test.data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{
			name: "buffer shorter than header",
			data: make([]byte, headerSize-1),
			want: derrors.UnexpectedEOF,
		},
		{
			name: "string runs off the buffer",
			data: archive(startMarker, 1, '+', 9, 'h', 'i'),
			want: derrors.UnexpectedEOF,
		},
		{
			name: "class name is not UTF-8",
			data: archive(startMarker, 1, '+', 2, 0xFF, 0xFE),
			want: derrors.InvalidText,
		},
		{
			name: "object back-reference to the future",
			data: archive(startMarker, 1, '@', referenceTag + 1),
			want: derrors.UnresolvedReference,
		},
		{
			name: "type list back-reference to the future",
			data: archive(startMarker, 1, '+', 2, 'h', 'i', referenceTag + 4, 0),
			want: derrors.UnresolvedReference,
		},
		{
			name: "pointer byte below the reference tag",
			data: archive('x'),
			want: derrors.MalformedClassChain,
		},
		{
			name: "class chain runs off the buffer",
			data: archive(startMarker, 1, '@', startMarker, 1, 'A'),
			want: derrors.UnexpectedEOF,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(test.data)
			if !errors.Is(err, test.want) {
				t.Errorf("Decode = %v, want %v", err, test.want)
			}
		})
	}
}

// TestDecodeTables checks that every class registered during a parse stays
// retrievable at its insertion index, and that a later back-reference
// resolves without consuming fresh name or version bytes.
func TestDecodeTables(t *testing.T) {
	data := archive(
		// A(v1) -> B(v2) -> end of chain.
		startMarker, 1, '@',
		startMarker, 1, 'A', 1,
		startMarker, 1, 'B', 2,
		emptyMarker,
		// Second object: back-reference to object 0.
		startMarker, 1, '@',
		referenceTag,
	)
	d := newDecoder(data)
	got, err := d.parse()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]Value{{classValue("B", 2)}, {classValue("A", 1)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	wantObjects := []archivable{
		{kind: classEntry, class: Class{Name: "A", Version: 1}},
		{kind: classEntry, class: Class{Name: "B", Version: 2}},
	}
	if diff := cmp.Diff(wantObjects, d.objects, cmp.AllowUnexported(archivable{})); diff != "" {
		t.Errorf("object table mismatch (-want +got):\n%s", diff)
	}

	// Each class name becomes a synthetic singleton type entry after the
	// object's own type list.
	wantTypes := [][]Type{
		{{Kind: Object}},
		{{Kind: InlineName, Name: "A"}},
		{{Kind: InlineName, Name: "B"}},
		{{Kind: Object}},
	}
	if diff := cmp.Diff(wantTypes, d.types); diff != "" {
		t.Errorf("type table mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeIdempotent(t *testing.T) {
	data := archive(
		startMarker, 2, '@', 'i',
		startMarker, 1, 'A', 1,
		emptyMarker,
		42,
		startMarker, 1, '+', 3, 'a', 'b', 'c',
	)
	first, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two decodes of the same buffer differ (-first +second):\n%s", diff)
	}
}

// TestDecodeTruncated checks that cutting a valid archive at any byte
// boundary yields a categorized error or a clean prefix parse, never a
// panic.
func TestDecodeTruncated(t *testing.T) {
	data := archive(
		startMarker, 1, '@',
		startMarker, 1, 'A', 1,
		startMarker, 1, 'B', 2,
		emptyMarker,
		endMarker,
		startMarker, 1, '+', 5, 'H', 'e', 'l', 'l', 'o',
	)
	sentinels := []error{
		derrors.UnexpectedEOF,
		derrors.InvalidText,
		derrors.UnresolvedReference,
		derrors.MalformedClassChain,
	}
	for i := 0; i < len(data); i++ {
		_, err := Decode(data[:i])
		if err == nil {
			continue
		}
		known := false
		for _, s := range sentinels {
			if errors.Is(err, s) {
				known = true
				break
			}
		}
		if !known {
			t.Errorf("Decode(data[:%d]) = %v; not one of the decode error kinds", i, err)
		}
	}
}
