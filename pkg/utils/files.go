// Package utils holds host-side file helpers.
package utils

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/go-faster/errors"
	"github.com/ulikunitz/xz"
)

// ErrEmptyArchive is returned for archives holding no ROM.
var ErrEmptyArchive = errors.New("utils: archive holds no rom")

// romExtensions are the extensions preferred when picking a file out
// of an archive.
var romExtensions = []string{".gb", ".gbc", ".cgb", ".sgb"}

// LoadFile loads the given file and performs decompression if necessary.
// Archives yield their first ROM, or their first file when none has a
// ROM extension.
func LoadFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Decompress(filename, data)
}

// Decompress unpacks data according to the extension of filename.
// Unknown extensions are returned as is.
func Decompress(filename string, data []byte) ([]byte, error) {
	var (
		decoder io.Reader
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".gz":
		var r *gzip.Reader
		if r, err = gzip.NewReader(bytes.NewReader(data)); err == nil {
			defer r.Close()
			decoder = r
		}
	case ".xz":
		decoder, err = xz.NewReader(bytes.NewReader(data))
	case ".zip":
		var r *zip.Reader
		if r, err = zip.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
			return readFirst(filename, r.File, func(f *zip.File) string { return f.Name }, (*zip.File).Open)
		}
	case ".7z":
		var r *sevenzip.Reader
		if r, err = sevenzip.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
			return readFirst(filename, r.File, func(f *sevenzip.File) string { return f.Name }, (*sevenzip.File).Open)
		}
	default:
		return data, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}

	out, err := io.ReadAll(decoder)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", filename)
	}
	return out, nil
}

// readFirst reads the first ROM in an archive listing.
func readFirst[F any](archive string, files []F, name func(F) string, open func(F) (io.ReadCloser, error)) ([]byte, error) {
	if len(files) == 0 {
		return nil, errors.Wrap(ErrEmptyArchive, archive)
	}

	pick := files[0]
	for _, f := range files {
		if hasROMExtension(name(f)) {
			pick = f
			break
		}
	}

	rc, err := open(pick)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s in %s", name(pick), archive)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s in %s", name(pick), archive)
	}
	return data, nil
}

func hasROMExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range romExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
