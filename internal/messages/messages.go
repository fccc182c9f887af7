// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package messages reads message and attachment rows from a Messages
// database (chat.db) and exposes the decoded typedstream body of each
// message.
package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/chatvault/imessage/internal/database"
	"github.com/chatvault/imessage/internal/derrors"
	"github.com/chatvault/imessage/internal/typedstream"
)

// Table names in chat.db. The schema is owned by Apple; we only read it.
const (
	MessageTable        = "message"
	AttachmentTable     = "attachment"
	AttachmentJoinTable = "message_attachment_join"
)

// DB provides read access to a Messages database.
type DB struct {
	db *database.DB
}

// New returns a DB backed by the given database handle.
func New(db *database.DB) *DB {
	return &DB{db: db}
}

// Open opens the Messages database at path read-only.
func Open(path string) (_ *DB, err error) {
	defer derrors.Wrap(&err, "messages.Open(%q)", path)
	db, err := database.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Close closes the underlying database handle.
func (db *DB) Close() error {
	return db.db.Close()
}

// A Message is one row of the message table, limited to the columns this
// package consumes.
type Message struct {
	RowID               int64
	GUID                string
	Text                string
	AttributedBody      []byte
	Date                int64
	IsFromMe            bool
	CacheHasAttachments bool
}

var messageColumns = []string{
	"m.ROWID",
	"m.guid",
	"m.text",
	"m.attributedBody",
	"m.date",
	"m.is_from_me",
	"m.cache_has_attachments",
}

func scanMessage(scan func(...interface{}) error) (*Message, error) {
	var (
		m    Message
		text sql.NullString
		body []byte
	)
	if err := scan(&m.RowID, &m.GUID, &text, &body, &m.Date, &m.IsFromMe, &m.CacheHasAttachments); err != nil {
		return nil, err
	}
	m.Text = text.String
	m.AttributedBody = body
	return &m, nil
}

// GetMessage returns the message with the given rowid.
// It returns an error wrapping derrors.NotFound if no such row exists.
func (db *DB) GetMessage(ctx context.Context, rowid int64) (_ *Message, err error) {
	defer derrors.Wrap(&err, "GetMessage(ctx, %d)", rowid)

	query, args, err := squirrel.Select(messageColumns...).
		From(MessageTable + " m").
		Where(squirrel.Eq{"m.ROWID": rowid}).
		ToSql()
	if err != nil {
		return nil, err
	}
	m, err := scanMessage(db.db.QueryRow(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, derrors.NotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns up to limit messages in rowid order.
func (db *DB) ListMessages(ctx context.Context, limit int) (_ []*Message, err error) {
	defer derrors.Wrap(&err, "ListMessages(ctx, %d)", limit)

	if limit <= 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, derrors.InvalidArgument)
	}
	query, args, err := squirrel.Select(messageColumns...).
		From(MessageTable + " m").
		OrderBy("m.ROWID").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	var msgs []*Message
	collect := func(rows *sql.Rows) error {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return fmt.Errorf("rows.Scan(): %v", err)
		}
		msgs = append(msgs, m)
		return nil
	}
	if err := db.db.RunQuery(ctx, query, collect, args...); err != nil {
		return nil, err
	}
	return msgs, nil
}

// BodyValues decodes the attributedBody typedstream blob of m. A message
// without a blob yields no entries. Decode failures are surfaced to the
// caller, who decides whether to skip the record.
func (m *Message) BodyValues() (_ [][]typedstream.Value, err error) {
	defer derrors.Wrap(&err, "BodyValues(message %d)", m.RowID)
	if len(m.AttributedBody) == 0 {
		return nil, nil
	}
	return typedstream.Decode(m.AttributedBody)
}
