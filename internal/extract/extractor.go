// Package extract unpacks the downloaded artifact into the raw data directory.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/sharing-ingest/internal/common"
	"github.com/mholt/archiver"
)

// Stage is the name recorded on errors raised by the extractor.
const Stage = "extract"

// Method describes how an input file was materialised.
type Method string

// Extraction methods.
const (
	MethodUnarchive  Method = "unarchive"
	MethodDecompress Method = "decompress"
	MethodCopy       Method = "copy"
)

// Extractor resets the raw data directory and fills it from an archive.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Detect picks the extraction method for name from its extension. Archive
// formats are unpacked, single-stream compressed files are decompressed, and
// anything else is copied as is.
func Detect(name string) (Method, interface{}) {
	format, err := archiver.ByExtension(name)
	if err != nil {
		return MethodCopy, nil
	}
	switch format.(type) {
	case archiver.Unarchiver:
		return MethodUnarchive, format
	case archiver.Decompressor:
		return MethodDecompress, format
	default:
		return MethodCopy, nil
	}
}

// Extract removes rawDir, recreates it, and materialises archivePath into it.
func (e *Extractor) Extract(ctx context.Context, archivePath, rawDir string) error {
	logger := common.LoggerFrom(ctx)

	info, err := os.Stat(archivePath)
	if err != nil {
		return common.FilesystemError(Stage, archivePath, err)
	}
	if info.IsDir() {
		return common.FilesystemError(Stage, archivePath, fmt.Errorf("%s is a directory", archivePath))
	}

	if err := os.RemoveAll(rawDir); err != nil {
		return common.FilesystemError(Stage, rawDir, err)
	}
	if err := os.MkdirAll(rawDir, 0750); err != nil {
		return common.FilesystemError(Stage, rawDir, err)
	}

	method, format := Detect(filepath.Base(archivePath))
	logger.Info("Extracting file", "path", archivePath, "dir", rawDir, "method", method)

	switch method {
	case MethodUnarchive:
		if err := format.(archiver.Unarchiver).Unarchive(archivePath, rawDir); err != nil {
			return unarchiveError(archivePath, err)
		}
	case MethodDecompress:
		if err := decompress(format.(archiver.Decompressor), archivePath, rawDir); err != nil {
			return err
		}
	default:
		if err := copyFile(archivePath, filepath.Join(rawDir, filepath.Base(archivePath))); err != nil {
			return common.FilesystemError(Stage, archivePath, err)
		}
	}

	logger.Info("Extraction completed", "dir", rawDir)
	return nil
}

// unarchiveError classifies an Unarchive failure. archiver flattens the
// underlying error into text, so an archive that can no longer be opened is
// checked directly.
func unarchiveError(archivePath string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return common.FilesystemError(Stage, archivePath, err)
	}
	f, openErr := os.Open(archivePath)
	if openErr != nil {
		return common.FilesystemError(Stage, archivePath, fmt.Errorf("%v: %w", err, openErr))
	}
	_ = f.Close()
	return common.DataFormatError(Stage, archivePath, err)
}

// decompress writes the single stream in src to rawDir/<src without its
// last extension>.
func decompress(d archiver.Decompressor, src, rawDir string) error {
	base := filepath.Base(src)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	dest := filepath.Join(rawDir, name)

	in, err := os.Open(src)
	if err != nil {
		return common.FilesystemError(Stage, src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return common.FilesystemError(Stage, dest, err)
	}

	if err := d.Decompress(in, out); err != nil {
		_ = out.Close()
		return common.DataFormatError(Stage, src, err)
	}
	if err := out.Close(); err != nil {
		return common.FilesystemError(Stage, dest, err)
	}
	return nil
}

func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
