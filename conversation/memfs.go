package conversation

import (
	"fmt"
	"path"

	"github.com/spf13/afero"
)

// memFS holds memory-located attachment payloads for the lifetime of the
// process. Database blob rows are materialized here on load so that every
// attachment is addressable by a path regardless of where its bytes live.
var memFS = afero.NewMemMapFs()

// MemFS exposes the in-memory attachment filesystem
func MemFS() afero.Fs {
	return memFS
}

// WriteMemoryFile stores data under the given virtual path
func WriteMemoryFile(location string, data []byte) error {
	if err := memFS.MkdirAll(path.Dir(location), 0755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}
	if err := afero.WriteFile(memFS, location, data, 0644); err != nil {
		return fmt.Errorf("failed to write memory file: %w", err)
	}
	return nil
}

// ReadMemoryFile reads data from the given virtual path
func ReadMemoryFile(location string) ([]byte, error) {
	data, err := afero.ReadFile(memFS, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory file: %w", err)
	}
	return data, nil
}

// MaterializeBlob writes a stored attachment payload into the memory
// filesystem and returns its virtual path. Payloads for distinct database
// rows never collide because the row id is part of the path.
func MaterializeBlob(dbID int64, name string, data []byte) (string, error) {
	location := fmt.Sprintf("/attachments/%d/%s", dbID, name)
	if err := WriteMemoryFile(location, data); err != nil {
		return "", err
	}
	return location, nil
}
