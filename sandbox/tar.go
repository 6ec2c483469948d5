package sandbox

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"time"
)

// codeArchive wraps the submitted code in an in-memory tar stream so it can
// be copied into a container before start. The entry is owned by the
// sandbox user and read-only to everyone else.
func codeArchive(name string, code []byte) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	header := &tar.Header{
		Name:    name,
		Mode:    0o444,
		Size:    int64(len(code)),
		ModTime: time.Now(),
		Uid:     65534,
		Gid:     65534,
	}
	if err := tw.WriteHeader(header); err != nil {
		return nil, fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := tw.Write(code); err != nil {
		return nil, fmt.Errorf("failed to write code to tar: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize tar: %w", err)
	}

	return &buf, nil
}
