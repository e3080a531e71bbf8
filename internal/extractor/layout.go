package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Layout names every artifact from ledger keys alone, so ledger rows and files
// on disk can each be derived from the other.
type Layout struct {
	OriginDir    string
	TableDir     string
	OriginPrefix string
	TablePrefix  string
}

// Ensure creates both artifact directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.OriginDir, l.TableDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir %s: %w", dir, err)
		}
	}
	return nil
}

// OriginArtifact is the path of a source's full rendering, e.g. M_origin_7.png.
func (l Layout) OriginArtifact(originID int, ext string) string {
	return filepath.Join(l.OriginDir, fmt.Sprintf("%s_%d.%s", l.OriginPrefix, originID, strings.TrimPrefix(ext, ".")))
}

// TableArtifact is the path of one table image, e.g. M_table_7_0.png.
func (l Layout) TableArtifact(originID, tableIndex int) string {
	return filepath.Join(l.TableDir, fmt.Sprintf("%s_%d_%d.png", l.TablePrefix, originID, tableIndex))
}

// ParseTableArtifact recovers the ledger key from a table artifact file name.
func (l Layout) ParseTableArtifact(name string) (originID, tableIndex int, ok bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, l.TablePrefix+"_") || filepath.Ext(base) != ".png" {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(base, l.TablePrefix+"_"), ".png"), "_")
	if len(parts) != 2 {
		return 0, 0, false
	}
	o, err1 := strconv.Atoi(parts[0])
	t, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return o, t, true
}

// TableArtifacts lists the table images on disk.
func (l Layout) TableArtifacts() ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(l.TableDir, l.TablePrefix+"_*.png"))
	if err != nil {
		return nil, fmt.Errorf("list table artifacts: %w", err)
	}
	out := matches[:0]
	for _, m := range matches {
		if _, _, ok := l.ParseTableArtifact(m); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// RemoveTableArtifactsFrom deletes the images of originID whose index is at
// least from. Used after a reprocess produced fewer tables than before.
func (l Layout) RemoveTableArtifactsFrom(originID, from int) (int, error) {
	all, err := l.TableArtifacts()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range all {
		o, t, _ := l.ParseTableArtifact(path)
		if o != originID || t < from {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove stale artifact %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

// RemoveOrigin deletes every origin artifact of originID, whatever its
// extension.
func (l Layout) RemoveOrigin(originID int) (int, error) {
	pattern := fmt.Sprintf("%s_%d.*", l.OriginPrefix, originID)
	matches, err := doublestar.Glob(os.DirFS(l.OriginDir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return 0, fmt.Errorf("list origin artifacts: %w", err)
	}
	removed := 0
	for _, name := range matches {
		path := filepath.Join(l.OriginDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove origin artifact %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

// WriteOrigin stores a source rendering and returns its path.
func (l Layout) WriteOrigin(originID int, ext string, data []byte) (string, error) {
	path := l.OriginArtifact(originID, ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write origin artifact: %w", err)
	}
	return path, nil
}

// CopyOrigin copies a source file, such as the PDF itself, into the origin dir.
func (l Layout) CopyOrigin(originID int, src string) (string, error) {
	path := l.OriginArtifact(originID, filepath.Ext(src))
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create origin artifact: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copy origin artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close origin artifact: %w", err)
	}
	return path, nil
}
