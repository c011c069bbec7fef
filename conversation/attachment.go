package conversation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"basilisk-llm/utils"
)

// AttachmentType describes where an attachment's bytes live
type AttachmentType string

const (
	AttachmentTypeLocal   AttachmentType = "local"
	AttachmentTypeMemory  AttachmentType = "memory"
	AttachmentTypeURL     AttachmentType = "url"
	AttachmentTypeUnknown AttachmentType = "unknown"
)

// Attachment is a file or image attached to a message. The concrete type is
// *AttachmentFile for plain files and *ImageFile for images.
type Attachment interface {
	// Info returns the common attachment fields
	Info() *AttachmentFile
}

// AttachmentFile is a non-image attachment
type AttachmentFile struct {
	// Location is a filesystem path, a virtual memory path or a URL,
	// depending on Type
	Location    string
	Type        AttachmentType
	Name        string
	Description string
	MimeType    string
	Size        int64

	// DBID is the attachments row id once persisted, 0 before
	DBID int64
}

// Info returns the attachment itself
func (a *AttachmentFile) Info() *AttachmentFile { return a }

// ReadBytes returns the attachment payload. URL attachments have no local
// payload and return an error.
func (a *AttachmentFile) ReadBytes() ([]byte, error) {
	switch a.Type {
	case AttachmentTypeLocal:
		data, err := os.ReadFile(a.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", a.Location, err)
		}
		return data, nil
	case AttachmentTypeMemory:
		return ReadMemoryFile(a.Location)
	case AttachmentTypeURL:
		return nil, fmt.Errorf("attachment %s is URL-located and has no local payload", a.Name)
	default:
		return nil, fmt.Errorf("attachment %s has unknown location type", a.Name)
	}
}

// Dimensions holds image pixel dimensions
type Dimensions struct {
	Width  int
	Height int
}

// ImageFile is an image attachment, optionally carrying pixel dimensions
type ImageFile struct {
	AttachmentFile
	Dimensions *Dimensions
}

// Resized returns the image payload scaled down so that neither dimension
// exceeds maxDim, along with the resulting MIME type
func (i *ImageFile) Resized(maxDim uint) ([]byte, string, error) {
	data, err := i.ReadBytes()
	if err != nil {
		return nil, "", err
	}
	return utils.ResizeImage(data, maxDim, 85)
}

// NewFileAttachment creates a local attachment from a file on disk
func NewFileAttachment(path string) (*AttachmentFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat attachment: %w", err)
	}
	return &AttachmentFile{
		Location: path,
		Type:     AttachmentTypeLocal,
		Name:     filepath.Base(path),
		MimeType: utils.GetMimeType(path),
		Size:     info.Size(),
	}, nil
}

// NewURLAttachment creates an attachment referencing a remote URL
func NewURLAttachment(url, name, mimeType string) *AttachmentFile {
	return &AttachmentFile{
		Location: url,
		Type:     AttachmentTypeURL,
		Name:     name,
		MimeType: mimeType,
	}
}

// NewMemoryAttachment creates an attachment backed by the in-memory
// filesystem, e.g. for clipboard pastes
func NewMemoryAttachment(location, name string, data []byte) (*AttachmentFile, error) {
	if err := WriteMemoryFile(location, data); err != nil {
		return nil, err
	}
	return &AttachmentFile{
		Location: location,
		Type:     AttachmentTypeMemory,
		Name:     name,
		MimeType: utils.GetMimeType(name),
		Size:     int64(len(data)),
	}, nil
}

// NewAttachment creates an attachment from a file on disk, returning an
// *ImageFile when the file looks like an image
func NewAttachment(path string) (Attachment, error) {
	if utils.IsImageFile(path) {
		return NewImageAttachment(path)
	}
	return NewFileAttachment(path)
}

// NewImageAttachment creates an image attachment from a file on disk,
// probing its pixel dimensions
func NewImageAttachment(path string) (*ImageFile, error) {
	base, err := NewFileAttachment(path)
	if err != nil {
		return nil, err
	}
	img := &ImageFile{AttachmentFile: *base}
	if data, err := base.ReadBytes(); err == nil {
		img.Dimensions = probeDimensions(data)
	}
	return img, nil
}

// probeDimensions decodes image dimensions from raw bytes, returning nil
// when the format is not recognized
func probeDimensions(data []byte) *Dimensions {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return &Dimensions{Width: cfg.Width, Height: cfg.Height}
}
