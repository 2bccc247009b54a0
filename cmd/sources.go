package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"media-viewer-engine/internal/fetch"
	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/playlist"
	"media-viewer-engine/internal/startup"

	"github.com/spf13/cobra"
)

var errNoReferences = errors.New("no references: use --manifest, --playlist, --dir or --id, or set MEDIA_DIR")

// sources is the initial reference list of a session.
type sources struct {
	refs    []media.Reference
	start   int
	quality media.Quality
	// scanner is set when a directory was opened, for --watch.
	scanner *media.Scanner
}

// collectSources gathers references from the source flags. A --dir
// replaces cfg.MediaDir so that by-path references resolve against it.
func collectSources(cmd *cobra.Command, cfg *startup.Config) (*sources, error) {
	quality, err := media.ParseQuality(mustGetString(cmd, "quality"))
	if err != nil {
		return nil, err
	}
	src := &sources{quality: quality}

	manifestPath := mustGetString(cmd, "manifest")
	playlistPath := mustGetString(cmd, "playlist")
	dir := mustGetString(cmd, "dir")
	ids := mustGetStringSlice(cmd, "id")
	if manifestPath == "" && dir == "" && len(ids) == 0 {
		dir = cfg.MediaDir
	}

	if manifestPath != "" {
		m, err := media.LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		refs, err := m.Resolve()
		if err != nil {
			// The slot stays, marked invalid, so positions match the manifest.
			logging.Warn("%s: %v", manifestPath, err)
		}
		src.refs = append(src.refs, refs...)
		src.start = m.Start
	}

	if playlistPath != "" {
		// The playlist picks the images; the directory is only its root.
		root := dir
		if root == "" {
			root = cfg.MediaDir
		}
		if root == "" {
			return nil, fmt.Errorf("--playlist needs --dir or MEDIA_DIR")
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		cfg.MediaDir = abs
		p, err := playlist.Load(playlistPath, abs)
		if err != nil {
			return nil, err
		}
		src.refs = append(src.refs, p.References(quality)...)
		dir = ""
	}

	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
		}
		cfg.MediaDir = abs
		src.scanner = media.NewScanner(abs)
		entries, err := src.scanner.List()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", abs, err)
		}
		for _, e := range entries {
			src.refs = append(src.refs, e.Reference(quality))
		}
		logging.Info("Found %d images under %s", len(entries), abs)
	}

	for _, id := range ids {
		src.refs = append(src.refs, media.ByID(id))
	}

	if start := mustGetInt(cmd, "start"); start >= 0 {
		src.start = start
	}
	if len(src.refs) == 0 && src.scanner == nil {
		return nil, errNoReferences
	}
	if len(src.refs) > 0 && (src.start < 0 || src.start >= len(src.refs)) {
		return nil, fmt.Errorf("start slot %d outside 0..%d", src.start, len(src.refs)-1)
	}
	return src, nil
}

// buildFetcher routes each reference kind to the collaborator the
// environment configures. By-path references prefer S3, then the local
// media directory, then the remote server.
func buildFetcher(ctx context.Context, cfg *startup.Config) (fetch.Fetcher, error) {
	router := &fetch.Router{}
	if cfg.RemoteURL != "" {
		remote := fetch.NewHTTPFetcher(cfg.RemoteURL, cfg.RemoteToken, nil)
		router.ID = remote
		router.Path = remote
	}
	switch {
	case cfg.S3.Bucket != "":
		s3f, err := fetch.NewS3Fetcher(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		router.Path = s3f
	case cfg.MediaDir != "":
		router.Path = fetch.NewFileFetcher(cfg.MediaDir)
	}

	burst := int(math.Ceil(cfg.FetchRateLimit))
	return fetch.RateLimited(router, cfg.FetchRateLimit, burst), nil
}
