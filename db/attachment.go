package db

import (
	"database/sql"
	"fmt"

	"basilisk-llm/conversation"
)

// saveAttachmentTx stores one attachment use: the deduplicated payload row
// plus a positioned link carrying the per-use description. Attachments whose
// bytes cannot be read are logged and skipped.
func (db *DB) saveAttachmentTx(tx *sql.Tx, messageID int64, position int, att conversation.Attachment) error {
	info := att.Info()
	attID := info.DBID

	if attID == 0 {
		isURL := info.Type == conversation.AttachmentTypeURL
		var content []byte
		if isURL {
			content = []byte(info.Location)
		} else {
			data, err := info.ReadBytes()
			if err != nil {
				db.log.Warn("could not read attachment %s, skipping: %v", info.Name, err)
				return nil
			}
			content = data
		}

		hash := contentHash(content)
		err := tx.QueryRow(`SELECT id FROM attachments WHERE content_hash = ?`, hash).Scan(&attID)
		if err == sql.ErrNoRows {
			attID, err = insertAttachmentRow(tx, hash, info, att, isURL, content)
			if err != nil {
				return err
			}
		} else if err != nil {
			return fmt.Errorf("failed to look up attachment: %w", err)
		}
		info.DBID = attID
	}

	_, err := tx.Exec(`
		INSERT INTO message_attachments (message_id, attachment_id, position, description)
		VALUES (?, ?, ?, ?)`,
		messageID, attID, position, nullIfEmpty(info.Description),
	)
	if err != nil {
		return fmt.Errorf("failed to link attachment: %w", err)
	}
	return nil
}

func insertAttachmentRow(tx *sql.Tx, hash string, info *conversation.AttachmentFile, att conversation.Attachment, isURL bool, content []byte) (int64, error) {
	var url *string
	var blob []byte
	if isURL {
		url = &info.Location
	} else {
		blob = content
	}

	var isImage bool
	var width, height *int
	if img, ok := att.(*conversation.ImageFile); ok {
		isImage = true
		if img.Dimensions != nil {
			width = &img.Dimensions.Width
			height = &img.Dimensions.Height
		}
	}

	res, err := tx.Exec(`
		INSERT INTO attachments (content_hash, name, mime_type, size, location_type, url, blob_data, is_image, image_width, image_height)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hash, nullIfEmpty(info.Name), nullIfEmpty(info.MimeType), info.Size,
		string(info.Type), url, blob, isImage, width, height,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attachment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get attachment id: %w", err)
	}
	return id, nil
}

// loadAttachments returns a message's attachments in position order.
// Undecodable rows are logged and skipped.
func (db *DB) loadAttachments(tx *sql.Tx, messageID int64) ([]conversation.Attachment, error) {
	rows, err := tx.Query(`
		SELECT a.id, a.content_hash, a.name, a.mime_type, a.size, a.location_type,
		       a.url, a.blob_data, a.is_image, a.image_width, a.image_height,
		       ma.description
		FROM message_attachments ma
		JOIN attachments a ON a.id = ma.attachment_id
		WHERE ma.message_id = ?
		ORDER BY ma.position`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachments: %w", err)
	}
	defer rows.Close()

	var attachments []conversation.Attachment
	for rows.Next() {
		var row AttachmentRow
		var description *string
		if err := rows.Scan(
			&row.ID, &row.ContentHash, &row.Name, &row.MimeType, &row.Size,
			&row.LocationType, &row.URL, &row.BlobData, &row.IsImage,
			&row.ImageWidth, &row.ImageHeight, &description,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		att := db.decodeAttachment(row, description)
		if att != nil {
			attachments = append(attachments, att)
		}
	}
	return attachments, rows.Err()
}

// decodeAttachment rebuilds an attachment from its row. URL rows keep their
// URL; blob rows are materialized into the memory filesystem. Rows with a
// missing payload decode to nil.
func (db *DB) decodeAttachment(row AttachmentRow, description *string) conversation.Attachment {
	name := "file"
	if row.Name != nil {
		name = *row.Name
	}

	base := conversation.AttachmentFile{
		Name: name,
		DBID: row.ID,
	}
	if row.MimeType != nil {
		base.MimeType = *row.MimeType
	}
	if row.Size != nil {
		base.Size = *row.Size
	}
	if description != nil {
		base.Description = *description
	}

	if row.LocationType == string(conversation.AttachmentTypeURL) {
		if row.URL == nil {
			db.log.Warn("attachment %s is URL-located but has no URL", name)
			return nil
		}
		base.Type = conversation.AttachmentTypeURL
		base.Location = *row.URL
	} else {
		if row.BlobData == nil {
			db.log.Warn("attachment %s has no blob data", name)
			return nil
		}
		location, err := conversation.MaterializeBlob(row.ID, name, row.BlobData)
		if err != nil {
			db.log.Warn("failed to materialize attachment %s: %v", name, err)
			return nil
		}
		base.Type = conversation.AttachmentTypeMemory
		base.Location = location
		base.Size = int64(len(row.BlobData))
	}

	if row.IsImage {
		img := &conversation.ImageFile{AttachmentFile: base}
		if row.ImageWidth != nil && row.ImageHeight != nil {
			img.Dimensions = &conversation.Dimensions{
				Width:  *row.ImageWidth,
				Height: *row.ImageHeight,
			}
		}
		return img
	}
	return &base
}

// nullIfEmpty maps the empty string to NULL
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
