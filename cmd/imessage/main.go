// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Imessage dumps decoded message bodies from a Messages database.
//
// Message text that newer macOS versions store only as a typedstream
// archive in the attributedBody column is decoded and printed alongside
// the plain text column.
//
// Usage:
//
//	imessage [flag]
//
// The flags are:
//
//	-db=PATH
//	    Path to chat.db (defaults to ~/Library/Messages/chat.db)
//	-config=FILE
//	    Optional YAML configuration file
//	-limit=20
//	    Maximum number of messages to dump
//	-diagnostics
//	    Report attachments missing from the filesystem instead of dumping
package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/chatvault/imessage/internal/config"
	"github.com/chatvault/imessage/internal/log"
	"github.com/chatvault/imessage/internal/messages"
	"github.com/chatvault/imessage/internal/typedstream"
)

var (
	configFile  = flag.String("config", "", "optional YAML configuration file")
	dbPath      = flag.String("db", "", "path to chat.db")
	limit       = flag.Int("limit", 20, "maximum number of messages to dump")
	diagnostics = flag.Bool("diagnostics", false, "report attachments missing from the filesystem")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf(ctx, "config.Load: %v", err)
	}
	log.SetLevel(cfg.LogLevel)
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	db, err := messages.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf(ctx, "messages.Open: %v", err)
	}
	defer db.Close()

	if *diagnostics {
		n, err := db.MissingAttachments(ctx, cfg.Home)
		if err != nil {
			log.Fatalf(ctx, "MissingAttachments: %v", err)
		}
		fmt.Printf("missing attachment files: %d\n", n)
		return
	}

	if err := dump(ctx, db, *limit); err != nil {
		log.Fatalf(ctx, "dump: %v", err)
	}
}

// dump prints up to limit messages with their decoded body values. Decode
// failures are logged per record and the record is skipped; they never
// abort the whole run.
func dump(ctx context.Context, db *messages.DB, limit int) error {
	msgs, err := db.ListMessages(ctx, limit)
	if err != nil {
		return err
	}

	// Decodes are independent pure computations; run them in parallel.
	bodies := make([][][]typedstream.Value, len(msgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, m := range msgs {
		i, m := i, m
		g.Go(func() error {
			body, err := m.BodyValues()
			if err != nil {
				log.Errorf(gctx, "skipping message %d: %v", m.RowID, err)
				return nil
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, m := range msgs {
		printMessage(ctx, db, m, bodies[i])
	}
	return nil
}

func printMessage(ctx context.Context, db *messages.DB, m *messages.Message, body [][]typedstream.Value) {
	fmt.Printf("message %d (%s)\n", m.RowID, m.GUID)
	if m.Text != "" {
		fmt.Printf("  text: %q\n", m.Text)
	}
	for _, entry := range body {
		for _, v := range entry {
			switch v.Kind {
			case typedstream.Text:
				fmt.Printf("  body: %q\n", v.Text)
			case typedstream.Number:
				fmt.Printf("  number: %d\n", v.Number)
			case typedstream.ClassDescriptor:
				fmt.Printf("  class: %s\n", v.Class)
			}
		}
	}
	if !m.CacheHasAttachments {
		return
	}
	atts, err := db.Attachments(ctx, m.RowID)
	if err != nil {
		log.Errorf(ctx, "attachments for message %d: %v", m.RowID, err)
		return
	}
	for _, a := range atts {
		fmt.Printf("  attachment: %s (%s, %d bytes)\n", a.DisplayName(), a.MediaType(), a.TotalBytes)
	}
}
