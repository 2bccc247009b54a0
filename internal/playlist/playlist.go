package playlist

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-viewer-engine/internal/filesystem"
	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/mediatypes"
)

// wpl mirrors the parts of a Windows Media Player playlist that are read.
type wpl struct {
	XMLName xml.Name `xml:"smil"`
	Head    struct {
		Title string `xml:"title"`
	} `xml:"head"`
	Body struct {
		Seq struct {
			Media []struct {
				Src string `xml:"src,attr"`
			} `xml:"media"`
		} `xml:"seq"`
	} `xml:"body"`
}

// Playlist is a parsed playlist file.
type Playlist struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Items []Item `json:"items"`
}

// Item is one entry. Path is slash-separated and relative to the media
// directory; it is empty when the entry could not be matched.
type Item struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	OrigPath string `json:"origPath"`
	Exists   bool   `json:"exists"`
}

// Load parses the playlist at path, choosing the format by extension, and
// matches its entries against mediaDir.
func Load(path, mediaDir string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}

	var title string
	var sources []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wpl":
		title, sources, err = parseWPL(data)
	case ".m3u", ".m3u8":
		sources = parseM3U(data)
	default:
		return nil, fmt.Errorf("unsupported playlist format: %s", filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p := &Playlist{Name: title, Path: path}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	r := resolver{
		playlistDir: filepath.Dir(path),
		mediaDir:    mediaDir,
		retry:       filesystem.DefaultRetryConfig(),
	}
	missing := 0
	for _, src := range sources {
		item := r.resolve(src)
		if !item.Exists {
			missing++
		}
		p.Items = append(p.Items, item)
	}
	if missing > 0 {
		logging.Warn("Playlist %s: %d of %d entries not found under %s", p.Name, missing, len(p.Items), mediaDir)
	}
	return p, nil
}

func parseWPL(data []byte) (string, []string, error) {
	var doc wpl
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("failed to parse WPL: %w", err)
	}
	sources := make([]string, 0, len(doc.Body.Seq.Media))
	for _, m := range doc.Body.Seq.Media {
		sources = append(sources, m.Src)
	}
	return doc.Head.Title, sources, nil
}

func parseM3U(data []byte) []string {
	var sources []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "\ufeff")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	return sources
}

type resolver struct {
	playlistDir string
	mediaDir    string
	retry       filesystem.RetryConfig
}

// normalize converts separators and strips UNC hosts and drive letters.
// It reports whether the result is anchored (absolute on the source
// machine).
func normalize(src string) (string, bool) {
	p := strings.ReplaceAll(strings.TrimSpace(src), "\\", "/")
	switch {
	case strings.HasPrefix(p, "//"):
		// //server/share/rest
		parts := strings.SplitN(strings.TrimPrefix(p, "//"), "/", 3)
		if len(parts) == 3 {
			return parts[2], true
		}
		return parts[len(parts)-1], true
	case len(p) >= 2 && p[1] == ':':
		return strings.TrimPrefix(p[2:], "/"), true
	case strings.HasPrefix(p, "/"):
		return strings.TrimPrefix(p, "/"), true
	}
	return p, false
}

func (r resolver) resolve(src string) Item {
	norm, anchored := normalize(src)
	item := Item{Name: filepath.Base(filepath.FromSlash(norm)), OrigPath: src}
	if norm == "" || !mediatypes.IsImage(strings.ToLower(filepath.Ext(norm))) {
		return item
	}

	if !anchored {
		if rel, ok := r.under(filepath.Join(r.playlistDir, filepath.FromSlash(norm))); ok {
			item.Path, item.Exists = rel, true
			return item
		}
	}

	// Progressive suffix matching: a/b/c.jpg, b/c.jpg, c.jpg.
	parts := strings.Split(norm, "/")
	for i := range parts {
		suffix := strings.Join(parts[i:], "/")
		if suffix == "" || strings.HasPrefix(suffix, "..") {
			continue
		}
		if rel, ok := r.under(filepath.Join(r.mediaDir, filepath.FromSlash(suffix))); ok {
			item.Path, item.Exists = rel, true
			return item
		}
	}
	return item
}

// under returns full relative to the media directory if full is a regular
// file inside it.
func (r resolver) under(full string) (string, bool) {
	info, err := filesystem.StatWithRetry(context.Background(), full, r.retry)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", false
	}
	absDir, err := filepath.Abs(r.mediaDir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absDir, absFull)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// References returns one reference per item at quality q. Missing items
// become invalid references so they occupy an invalid slot.
func (p *Playlist) References(q media.Quality) []media.Reference {
	refs := make([]media.Reference, len(p.Items))
	for i, item := range p.Items {
		if !item.Exists {
			refs[i] = media.Reference{Name: item.Name}
			continue
		}
		refs[i] = media.ByPath(item.Path, item.Name, q)
	}
	return refs
}
