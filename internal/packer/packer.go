// Package packer bundles folders of page images into .cbz archives.
package packer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/natural"
	"github.com/mrlokans/comicshelf/internal/utils"
)

type Mode int

const (
	// ModeCurrentFolder packs the input folder itself into one archive.
	ModeCurrentFolder Mode = iota
	// ModeSubfolders packs every immediate subfolder into its own archive.
	ModeSubfolders
)

type Naming int

const (
	// NamingFolder names the archive after the packed folder.
	NamingFolder Naming = iota
	// NamingParentAndFolder names the archive "<parent> - <folder>".
	NamingParentAndFolder
)

const (
	Extension         = ".cbz"
	DefaultBufferSize = 32 * 1024
)

// Progress receives packing progress. Calls happen on the packing goroutine.
type Progress interface {
	// FileProgress reports bytes written out of the size of the file being added.
	FileProgress(written, total int64)
	// OverallProgress reports completion across all folders, each weighted equally.
	OverallProgress(fraction float64)
	// CurrentFile reports the file being added, relative to its folder.
	CurrentFile(name string)
}

type noopProgress struct{}

func (noopProgress) FileProgress(int64, int64) {}
func (noopProgress) OverallProgress(float64)   {}
func (noopProgress) CurrentFile(string)        {}

type Packer struct {
	Mode   Mode
	Naming Naming
	// Deny lists subfolder names skipped in ModeSubfolders.
	Deny []string
	// OutputDir defaults to the parent of the packed folder.
	OutputDir  string
	BufferSize int
	Progress   Progress
}

// Pack creates the archives for inputDir and returns their paths.
func (p *Packer) Pack(ctx context.Context, inputDir string) ([]string, error) {
	inputDir, err := filepath.Abs(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", inputDir, err)
	}
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is not a folder", inputDir)
	}

	folders, err := p.sourceFolders(inputDir)
	if err != nil {
		return nil, err
	}

	progress := p.Progress
	if progress == nil {
		progress = noopProgress{}
	}
	bufSize := p.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	buf := make([]byte, bufSize)

	var created []string
	for i, folder := range folders {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		out, err := p.packFolder(ctx, folder, buf, progress, func(done float64) {
			progress.OverallProgress((float64(i) + done) / float64(len(folders)))
		})
		if err != nil {
			return created, err
		}
		created = append(created, out)
		logging.L().Info("Packed folder", logging.String("folder", folder), logging.String("archive", out))
	}
	progress.OverallProgress(1)
	return created, nil
}

func (p *Packer) sourceFolders(inputDir string) ([]string, error) {
	if p.Mode == ModeCurrentFolder {
		return []string{inputDir}, nil
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", inputDir, err)
	}
	var folders []string
	for _, e := range entries {
		if !e.IsDir() || slices.Contains(p.Deny, e.Name()) {
			continue
		}
		folders = append(folders, filepath.Join(inputDir, e.Name()))
	}
	slices.SortFunc(folders, natural.Compare)
	return folders, nil
}

// ArchiveName returns the archive file name for folder under the configured naming.
func (p *Packer) ArchiveName(folder string) string {
	name := filepath.Base(folder)
	if p.Naming == NamingParentAndFolder {
		if parent := filepath.Base(filepath.Dir(folder)); parent != "." && parent != string(filepath.Separator) {
			name = parent + " - " + name
		}
	}
	return utils.SanitizeFilename(name) + Extension
}

type sourceFile struct {
	path string
	rel  string
	size int64
}

func collectFiles(folder string) ([]sourceFile, int64, error) {
	var files []sourceFile
	var total int64
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.L().Warn("Skipping unreadable path", logging.String("path", path), logging.Err(err))
			if d != nil && d.IsDir() && path != folder {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logging.L().Warn("Skipping unreadable file", logging.String("path", path), logging.Err(err))
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		files = append(files, sourceFile{path: path, rel: filepath.ToSlash(rel), size: info.Size()})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(files, func(a, b sourceFile) int {
		return natural.Compare(a.rel, b.rel)
	})
	return files, total, nil
}

func (p *Packer) packFolder(ctx context.Context, folder string, buf []byte, progress Progress, overall func(float64)) (out string, err error) {
	files, total, err := collectFiles(folder)
	if err != nil {
		return "", fmt.Errorf("failed to walk %s: %w", folder, err)
	}

	outDir := p.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(folder)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output folder: %w", err)
	}
	out = filepath.Join(outDir, p.ArchiveName(folder))

	tmp, err := os.CreateTemp(outDir, "."+filepath.Base(out)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp archive: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	counter := &countingWriter{progress: progress}
	for _, f := range files {
		if err = ctx.Err(); err != nil {
			return "", err
		}
		progress.CurrentFile(f.rel)
		counter.start(f.size)

		if err = addFile(zw, f, counter, buf); err != nil {
			return "", fmt.Errorf("failed to add %s: %w", f.path, err)
		}
		if total > 0 {
			overall(float64(counter.written) / float64(total))
		}
	}

	if err = zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish archive: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}
	if err = os.Rename(tmp.Name(), out); err != nil {
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}
	logging.L().Debug("Archive written",
		logging.String("archive", out),
		logging.Int("files", len(files)),
		logging.Int64("bytes", counter.written))
	return out, nil
}

func addFile(zw *zip.Writer, f sourceFile, counter *countingWriter, buf []byte) error {
	src, err := os.Open(f.path)
	if err != nil {
		// Unreadable files are skipped; the rest of the folder is still packed.
		logging.L().Warn("Skipping unreadable file", logging.String("path", f.path), logging.Err(err))
		counter.skip(f.size)
		return nil
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = f.rel
	header.Method = zip.Deflate
	if isPrecompressed(f.rel) {
		header.Method = zip.Store
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	counter.w = w
	_, err = io.CopyBuffer(counter, struct{ io.Reader }{src}, buf)
	return err
}

func isPrecompressed(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif":
		return true
	}
	return false
}

// countingWriter forwards writes to the current entry and reports progress.
// written accumulates over the whole folder, fileWritten over the current file.
type countingWriter struct {
	w           io.Writer
	written     int64
	fileWritten int64
	fileSize    int64
	progress    Progress
}

func (c *countingWriter) start(size int64) {
	c.fileWritten = 0
	c.fileSize = size
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	c.fileWritten += int64(n)
	c.progress.FileProgress(c.fileWritten, c.fileSize)
	return n, err
}

func (c *countingWriter) skip(n int64) {
	c.written += n
	c.fileWritten = c.fileSize
	c.progress.FileProgress(c.fileWritten, c.fileSize)
}
