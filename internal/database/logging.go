// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/chatvault/imessage/internal/derrors"
	"github.com/chatvault/imessage/internal/log"
)

// QueryLoggingDisabled stops logging of queries when true.
// For use in tests only: not concurrency-safe.
var QueryLoggingDisabled bool

var queryCounter int64 // atomic: per-process counter for unique query IDs

func logQuery(ctx context.Context, query string, args []interface{}) func(*error) {
	if QueryLoggingDisabled {
		return func(*error) {}
	}
	const maxlen = 300 // maximum length of displayed query

	// To make the query more compact and readable, replace newlines with
	// spaces and collapse adjacent whitespace.
	var r []rune
	for _, c := range query {
		if c == '\n' {
			c = ' '
		}
		if len(r) == 0 || !unicode.IsSpace(r[len(r)-1]) || !unicode.IsSpace(c) {
			r = append(r, c)
		}
	}
	query = string(r)
	if len(query) > maxlen {
		query = query[:maxlen] + "..."
	}

	uid := generateLoggingID()

	// Construct a short string of the args.
	const (
		maxArgs   = 20
		maxArgLen = 50
	)
	var argStrings []string
	for i := 0; i < len(args) && i < maxArgs; i++ {
		s := fmt.Sprint(args[i])
		if len(s) > maxArgLen {
			s = s[:maxArgLen] + "..."
		}
		argStrings = append(argStrings, s)
	}
	if len(args) > maxArgs {
		argStrings = append(argStrings, "...")
	}
	argString := strings.Join(argStrings, ", ")

	log.Debugf(ctx, "%s %s args=%s", uid, query, argString)
	start := time.Now()
	return func(errp *error) {
		dur := time.Since(start)
		if errp == nil { // happens with QueryRow
			log.Debugf(ctx, "%s done", uid)
			return
		}
		derrors.Wrap(errp, "DB running query %s", uid)
		if *errp == nil {
			log.Debugf(ctx, "%s done in %.3fs", uid, dur.Seconds())
		} else {
			log.Errorf(ctx, "%s failed in %.3fs: %v", uid, dur.Seconds(), *errp)
		}
	}
}

func (db *DB) logTransaction(ctx context.Context) func(*error) {
	if QueryLoggingDisabled {
		return func(*error) {}
	}
	uid := generateLoggingID()
	log.Debugf(ctx, "%s transaction started", uid)
	start := time.Now()
	return func(errp *error) {
		log.Debugf(ctx, "%s transaction finished in %s with error %v",
			uid, time.Since(start), *errp)
	}
}

func generateLoggingID() string {
	n := atomic.AddInt64(&queryCounter, 1)
	return fmt.Sprintf("local-%d", n)
}
