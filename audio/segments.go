package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const SegmentPrefix = "segment-"

type SegmentFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ListSegments returns the segment files in dir, newest first. A missing
// directory yields no segments.
func ListSegments(dir string) ([]SegmentFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading segment directory: %w", err)
	}

	var out []SegmentFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), SegmentPrefix) {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".wav" && ext != ".flac" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SegmentFile{
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	// names embed the start timestamp, so they break mtime ties
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

// PruneSegments deletes all but the newest keep segments. keep <= 0 keeps
// everything. It returns the removed paths.
func PruneSegments(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	segs, err := ListSegments(dir)
	if err != nil {
		return nil, err
	}
	if len(segs) <= keep {
		return nil, nil
	}
	var removed []string
	for _, s := range segs[keep:] {
		if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing %s: %w", filepath.Base(s.Path), err)
		}
		removed = append(removed, s.Path)
	}
	return removed, nil
}
