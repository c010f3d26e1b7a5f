package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxUploadSize caps accepted bundle uploads.
const MaxUploadSize = 10 * 1024 * 1024

// isSafePath rejects zip entry paths that could escape the extraction root:
// absolute paths, Windows drive letters, and .. traversal.
func isSafePath(p string) bool {
	if p == "" {
		return false
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return false
	}
	if len(p) >= 2 && p[1] == ':' {
		return false
	}
	normalized := strings.ReplaceAll(p, `\`, "/")
	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// ExtractZip reads a zip archive into a filepath -> content map. Directory
// entries and binary files are skipped. Unsafe entry paths and entries that
// decompress past MaxUploadSize fail the whole archive.
func ExtractZip(data []byte) (map[string]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid zip file: %w", err)
	}

	files := make(map[string]string)
	for _, entry := range reader.File {
		if strings.HasSuffix(entry.Name, "/") {
			continue
		}
		if !isSafePath(entry.Name) {
			return nil, fmt.Errorf("invalid path in zip file: %s", entry.Name)
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read zip entry %s: %w", entry.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, MaxUploadSize+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read zip entry %s: %w", entry.Name, err)
		}
		if len(content) > MaxUploadSize {
			return nil, fmt.Errorf("zip entry %s exceeds the size limit", entry.Name)
		}

		// Skip binary files.
		if !utf8.Valid(content) {
			continue
		}
		files[entry.Name] = string(content)
	}

	return files, nil
}

// BuildZip packs a filepath -> content map into a zip archive, the inverse of
// ExtractZip. Entries are written in sorted path order so the output is
// deterministic.
func BuildZip(files map[string]string) ([]byte, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, p := range paths {
		entry, err := w.Create(p)
		if err != nil {
			return nil, fmt.Errorf("failed to add zip entry %s: %w", p, err)
		}
		if _, err := entry.Write([]byte(files[p])); err != nil {
			return nil, fmt.Errorf("failed to write zip entry %s: %w", p, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}
