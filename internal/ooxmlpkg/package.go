package ooxmlpkg

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Package models an OOXML container: the original zip entries plus an overlay
// of rewritten or added parts. Reads consult the overlay first. Saving emits
// every original entry (overlaid content substituted in place, preserving
// entry order) and appends brand-new parts at the end.
type Package struct {
	reader  *zip.Reader
	index   map[string]*zip.File
	overlay map[string][]byte
}

func OpenBytes(data []byte) (*Package, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	index := make(map[string]*zip.File, len(reader.File))
	for _, part := range reader.File {
		index[part.Name] = part
	}

	return &Package{
		reader:  reader,
		index:   index,
		overlay: make(map[string][]byte),
	}, nil
}

func OpenFile(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, path, err)
	}
	pkg, err := OpenBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, path, err)
	}
	return pkg, nil
}

func (p *Package) HasPart(name string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.overlay[name]; ok {
		return true
	}
	_, ok := p.index[name]
	return ok
}

func (p *Package) ListParts() []string {
	if p == nil || p.reader == nil {
		return nil
	}

	names := make([]string, 0, len(p.reader.File)+len(p.overlay))
	seen := make(map[string]struct{}, len(p.reader.File))
	for _, part := range p.reader.File {
		names = append(names, part.Name)
		seen[part.Name] = struct{}{}
	}

	extras := make([]string, 0, len(p.overlay))
	for name := range p.overlay {
		if _, ok := seen[name]; !ok {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	return append(names, extras...)
}

func (p *Package) ReadPart(name string) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: package not initialized", ErrOpenFailed)
	}

	if data, ok := p.overlay[name]; ok {
		return append([]byte(nil), data...), nil
	}

	part, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}

	reader, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("read part %q: %w", name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read part %q: %w", name, err)
	}
	return data, nil
}

func (p *Package) WritePart(name string, data []byte) {
	if p == nil {
		return
	}
	if p.overlay == nil {
		p.overlay = make(map[string][]byte)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	p.overlay[name] = copied
}

// Bytes serializes the package, original entries plus overlay, into a fresh
// zip archive.
func (p *Package) Bytes() ([]byte, error) {
	if p == nil || p.reader == nil {
		return nil, fmt.Errorf("%w: package not initialized", ErrSaveFailed)
	}

	var buf bytes.Buffer
	if err := p.writeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Package) SaveFile(path string) error {
	data, err := p.Bytes()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, path, err)
	}
	return nil
}

func (p *Package) writeTo(w io.Writer) error {
	writer := zip.NewWriter(w)
	written := make(map[string]struct{}, len(p.reader.File)+len(p.overlay))

	for _, part := range p.reader.File {
		name := part.Name
		written[name] = struct{}{}

		data, overlaid := p.overlay[name]
		if !overlaid {
			if err := writer.Copy(part); err != nil {
				_ = writer.Close()
				return fmt.Errorf("%w: copy part %q: %v", ErrSaveFailed, name, err)
			}
			continue
		}
		if err := writeEntry(writer, name, data); err != nil {
			_ = writer.Close()
			return fmt.Errorf("%w: write part %q: %v", ErrSaveFailed, name, err)
		}
	}

	extras := make([]string, 0, len(p.overlay))
	for name := range p.overlay {
		if _, ok := written[name]; !ok {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	for _, name := range extras {
		if err := writeEntry(writer, name, p.overlay[name]); err != nil {
			_ = writer.Close()
			return fmt.Errorf("%w: write part %q: %v", ErrSaveFailed, name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

// writeEntry precomputes size and CRC and uses CreateRaw so rewritten parts
// never carry trailing data descriptors, which some document viewers reject.
func writeEntry(writer *zip.Writer, name string, data []byte) error {
	compressed, err := deflate(data)
	if err != nil {
		return err
	}

	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	header.CRC32 = crc32.ChecksumIEEE(data)
	header.UncompressedSize64 = uint64(len(data))
	header.CompressedSize64 = uint64(len(compressed))

	entry, err := writer.CreateRaw(header)
	if err != nil {
		return err
	}
	if len(compressed) == 0 {
		return nil
	}
	_, err = entry.Write(compressed)
	return err
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if _, err := zw.Write(data); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
