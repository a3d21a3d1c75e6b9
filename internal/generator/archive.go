package generator

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Archive writes a ZIP of the site's generated files to w.
func (g *Generator) Archive(w io.Writer, siteID string) error {
	if !g.Exists(siteID) {
		return ErrSiteNotGenerated
	}
	files, err := listFiles(filepath.Join(g.outDir, siteID))
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, f := range files {
		if err := addToZip(zw, f); err != nil {
			zw.Close()
			return fmt.Errorf("archive %s: %w", f.Name, err)
		}
	}
	return zw.Close()
}

func addToZip(zw *zip.Writer, f File) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return err
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
	header.Name = f.Name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
