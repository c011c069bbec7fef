package conversation

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"basilisk-llm/provider"
)

// Conversation file format: a zip archive holding conversation.json plus the
// payload of every non-URL attachment under attachments/. URL attachments
// keep only their URL.

const conversationEntry = "conversation.json"

type fileAttachment struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size,omitempty"`
	URL         string `json:"url,omitempty"`
	IsImage     bool   `json:"is_image"`
	Width       *int   `json:"width,omitempty"`
	Height      *int   `json:"height,omitempty"`
	ArchivePath string `json:"archive_path,omitempty"`
}

type fileMessage struct {
	Role        MessageRole       `json:"role"`
	Content     string            `json:"content"`
	Attachments []*fileAttachment `json:"attachments,omitempty"`
	Citations   []*Citation       `json:"citations,omitempty"`
}

type fileBlock struct {
	Request     *fileMessage         `json:"request"`
	Response    *fileMessage         `json:"response,omitempty"`
	SystemIndex *int                 `json:"system_index,omitempty"`
	Model       provider.AIModelInfo `json:"model"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	TopP        float64              `json:"top_p"`
	Stream      bool                 `json:"stream"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type fileDocument struct {
	Version  int              `json:"version"`
	Title    *string          `json:"title,omitempty"`
	Systems  []*SystemMessage `json:"systems,omitempty"`
	Messages []*fileBlock     `json:"messages"`
}

// SaveFile writes the conversation to a conversation file at the given path
func SaveFile(conv *Conversation, filePath string) error {
	out, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create conversation file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	doc := fileDocument{
		Version: FormatVersion,
		Title:   conv.Title,
		Systems: conv.Systems,
	}

	attIndex := 0
	for _, block := range conv.Messages {
		fb := &fileBlock{
			SystemIndex: block.SystemIndex,
			Model:       block.Model,
			Temperature: block.Temperature,
			MaxTokens:   block.MaxTokens,
			TopP:        block.TopP,
			Stream:      block.Stream,
			CreatedAt:   block.CreatedAt,
			UpdatedAt:   block.UpdatedAt,
		}
		fb.Request, err = writeMessage(zw, block.Request, &attIndex)
		if err != nil {
			return err
		}
		fb.Response, err = writeMessage(zw, block.Response, &attIndex)
		if err != nil {
			return err
		}
		doc.Messages = append(doc.Messages, fb)
	}

	entry, err := zw.Create(conversationEntry)
	if err != nil {
		return fmt.Errorf("failed to create archive entry: %w", err)
	}
	enc := json.NewEncoder(entry)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize conversation file: %w", err)
	}
	return nil
}

func writeMessage(zw *zip.Writer, msg *Message, attIndex *int) (*fileMessage, error) {
	if msg == nil {
		return nil, nil
	}
	fm := &fileMessage{
		Role:      msg.Role,
		Content:   msg.Content,
		Citations: msg.Citations,
	}
	for _, att := range msg.Attachments {
		info := att.Info()
		fa := &fileAttachment{
			Name:        info.Name,
			Description: info.Description,
			MimeType:    info.MimeType,
			Size:        info.Size,
		}
		if img, ok := att.(*ImageFile); ok {
			fa.IsImage = true
			if img.Dimensions != nil {
				fa.Width = &img.Dimensions.Width
				fa.Height = &img.Dimensions.Height
			}
		}
		if info.Type == AttachmentTypeURL {
			fa.URL = info.Location
		} else {
			data, err := info.ReadBytes()
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment for archive: %w", err)
			}
			fa.ArchivePath = fmt.Sprintf("attachments/%d_%s", *attIndex, info.Name)
			*attIndex++
			w, err := zw.Create(fa.ArchivePath)
			if err != nil {
				return nil, fmt.Errorf("failed to create archive entry: %w", err)
			}
			if _, err := w.Write(data); err != nil {
				return nil, fmt.Errorf("failed to write attachment to archive: %w", err)
			}
		}
		fm.Attachments = append(fm.Attachments, fa)
	}
	return fm, nil
}

// OpenFile reads a conversation file. Archived attachment payloads are
// placed in the memory filesystem.
func OpenFile(filePath string) (*Conversation, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation file: %w", err)
	}
	defer zr.Close()

	var doc fileDocument
	found := false
	for _, f := range zr.File {
		if f.Name != conversationEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry: %w", err)
		}
		err = json.NewDecoder(rc).Decode(&doc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("invalid conversation file: missing %s", conversationEntry)
	}

	conv := &Conversation{
		Title:   doc.Title,
		Systems: doc.Systems,
		Version: FormatVersion,
	}
	for _, fb := range doc.Messages {
		block := &MessageBlock{
			SystemIndex: fb.SystemIndex,
			Model:       fb.Model,
			Temperature: fb.Temperature,
			MaxTokens:   fb.MaxTokens,
			TopP:        fb.TopP,
			Stream:      fb.Stream,
			CreatedAt:   fb.CreatedAt,
			UpdatedAt:   fb.UpdatedAt,
		}
		block.Request, err = readMessage(&zr.Reader, fb.Request, filePath)
		if err != nil {
			return nil, err
		}
		block.Response, err = readMessage(&zr.Reader, fb.Response, filePath)
		if err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, block)
	}
	return conv, nil
}

func readMessage(zr *zip.Reader, fm *fileMessage, filePath string) (*Message, error) {
	if fm == nil {
		return nil, nil
	}
	msg := &Message{
		Role:      fm.Role,
		Content:   fm.Content,
		Citations: fm.Citations,
	}
	for _, fa := range fm.Attachments {
		att, err := readAttachment(zr, fa, filePath)
		if err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, att)
	}
	return msg, nil
}

func readAttachment(zr *zip.Reader, fa *fileAttachment, filePath string) (Attachment, error) {
	base := AttachmentFile{
		Name:        fa.Name,
		Description: fa.Description,
		MimeType:    fa.MimeType,
		Size:        fa.Size,
	}
	if fa.URL != "" {
		base.Type = AttachmentTypeURL
		base.Location = fa.URL
	} else {
		data, err := readArchiveEntry(zr, fa.ArchivePath)
		if err != nil {
			return nil, err
		}
		location := path.Join("/imported", path.Base(filePath), fa.ArchivePath)
		if err := WriteMemoryFile(location, data); err != nil {
			return nil, err
		}
		base.Type = AttachmentTypeMemory
		base.Location = location
		base.Size = int64(len(data))
	}
	if fa.IsImage {
		img := &ImageFile{AttachmentFile: base}
		if fa.Width != nil && fa.Height != nil {
			img.Dimensions = &Dimensions{Width: *fa.Width, Height: *fa.Height}
		}
		return img, nil
	}
	return &base, nil
}

func readArchiveEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("invalid conversation file: missing entry %s", name)
}
