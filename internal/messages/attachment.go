// Copyright 2023 The chatvault Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package messages

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/chatvault/imessage/internal/derrors"
)

// MediaType classifies an attachment by the major token of its MIME type,
// the part before the first '/'.
type MediaType int

const (
	UnknownMedia MediaType = iota
	Image
	Video
	Audio
	TextMedia
	Application
	OtherMedia
)

func (m MediaType) String() string {
	switch m {
	case Image:
		return "image"
	case Video:
		return "video"
	case Audio:
		return "audio"
	case TextMedia:
		return "text"
	case Application:
		return "application"
	case OtherMedia:
		return "other"
	default:
		return "unknown"
	}
}

// ClassifyMIME maps a MIME type string to a MediaType. An empty string is
// UnknownMedia; an unrecognized major token is OtherMedia.
func ClassifyMIME(mime string) MediaType {
	if mime == "" {
		return UnknownMedia
	}
	major, _, _ := strings.Cut(mime, "/")
	switch major {
	case "image":
		return Image
	case "video":
		return Video
	case "audio":
		return Audio
	case "text":
		return TextMedia
	case "application":
		return Application
	default:
		return OtherMedia
	}
}

// An Attachment is one row of the attachment table, limited to the columns
// this package consumes. String columns are empty when NULL in the
// database.
type Attachment struct {
	RowID        int64
	Filename     string
	MimeType     string
	TransferName string
	TotalBytes   int64
	Hidden       bool
}

// MediaType classifies the attachment's MIME type.
func (a *Attachment) MediaType() MediaType {
	return ClassifyMIME(a.MimeType)
}

// Path returns the attachment's path on disk, or "" if the filename column
// was NULL.
func (a *Attachment) Path() string {
	return a.Filename
}

// Extension returns the attachment filename's extension without the dot,
// or "" if there is none.
func (a *Attachment) Extension() string {
	ext := filepath.Ext(a.Filename)
	return strings.TrimPrefix(ext, ".")
}

// fallbackName is used when an attachment row carries no name metadata at
// all.
const fallbackName = "Attachment missing name metadata!"

// DisplayName returns a reasonable name for the attachment: the transfer
// name if present, then the filename, then a fixed fallback.
func (a *Attachment) DisplayName() string {
	if a.TransferName != "" {
		return a.TransferName
	}
	if a.Filename != "" {
		return a.Filename
	}
	return fallbackName
}

var attachmentColumns = []string{
	"a.ROWID",
	"a.filename",
	"a.mime_type",
	"a.transfer_name",
	"a.total_bytes",
	"a.hide_attachment",
}

func scanAttachment(scan func(...interface{}) error) (*Attachment, error) {
	var (
		a                                Attachment
		filename, mimeType, transferName sql.NullString
	)
	if err := scan(&a.RowID, &filename, &mimeType, &transferName, &a.TotalBytes, &a.Hidden); err != nil {
		return nil, err
	}
	a.Filename = filename.String
	a.MimeType = mimeType.String
	a.TransferName = transferName.String
	return &a, nil
}

// Attachments returns the attachments of the message with the given rowid,
// in attachment rowid order. Messages without attachments yield an empty
// slice.
func (db *DB) Attachments(ctx context.Context, messageID int64) (_ []*Attachment, err error) {
	defer derrors.Wrap(&err, "Attachments(ctx, %d)", messageID)

	query, args, err := squirrel.Select(attachmentColumns...).
		From(AttachmentJoinTable + " j").
		LeftJoin(AttachmentTable + " a ON j.attachment_id = a.ROWID").
		Where(squirrel.Eq{"j.message_id": messageID}).
		OrderBy("a.ROWID").
		ToSql()
	if err != nil {
		return nil, err
	}
	var atts []*Attachment
	collect := func(rows *sql.Rows) error {
		a, err := scanAttachment(rows.Scan)
		if err != nil {
			return fmt.Errorf("rows.Scan(): %v", err)
		}
		atts = append(atts, a)
		return nil
	}
	if err := db.db.RunQuery(ctx, query, collect, args...); err != nil {
		return nil, err
	}
	return atts, nil
}

// MissingAttachments counts attachment rows whose file is absent from the
// filesystem. A leading '~' in the stored filename is expanded against
// home. Rows with a NULL filename are not counted.
func (db *DB) MissingAttachments(ctx context.Context, home string) (count int, err error) {
	defer derrors.Wrap(&err, "MissingAttachments")

	query := fmt.Sprintf("SELECT filename FROM %s", AttachmentTable)
	collect := func(rows *sql.Rows) error {
		var filename sql.NullString
		if err := rows.Scan(&filename); err != nil {
			return err
		}
		if !filename.Valid || filename.String == "" {
			return nil
		}
		path := filename.String
		if strings.HasPrefix(path, "~") {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
		if _, err := os.Stat(path); err != nil {
			count++
		}
		return nil
	}
	if err := db.db.RunQuery(ctx, query, collect); err != nil {
		return 0, err
	}
	return count, nil
}
