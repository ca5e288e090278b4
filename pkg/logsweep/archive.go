package logsweep

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ArchiveName returns the suggested filename for a log export made now.
func ArchiveName(now time.Time) string {
	return fmt.Sprintf("telebridge-logs-%s.zip", now.Format("20060102-150405"))
}

// Archive zips every regular file in the log directory into w. The live
// log file is included; a partial last line is acceptable in an export.
func Archive(dir string, w io.Writer) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	zw := zip.NewWriter(w)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addFile(zw, dir, entry.Name()); err != nil {
			zw.Close()
			return err
		}
	}

	return zw.Close()
}

func addFile(zw *zip.Writer, dir, name string) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat log file %s: %w", name, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build zip header for %s: %w", name, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}

	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("failed to compress %s: %w", name, err)
	}

	return nil
}
