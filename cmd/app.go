package cmd

import (
	"context"
	"fmt"

	"media-viewer-engine/internal/filesystem"
	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/memory"
	"media-viewer-engine/internal/metrics"
	"media-viewer-engine/internal/session"
	"media-viewer-engine/internal/startup"

	"github.com/spf13/cobra"
)

// app is an open session plus what it was built from.
type app struct {
	cfg     *startup.Config
	src     *sources
	sess    *session.Session
	monitor *memory.Monitor
}

// openApp loads configuration, builds the fetch collaborators and opens a
// session over the references the flags select.
func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := startup.LoadConfigFrom(envFile)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	startup.LogMemoryConfig(memory.ConfigureFromEnv())
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()

	src, err := collectSources(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MediaDir != "" {
		filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{"media": cfg.MediaDir}))
	}
	fetcher, err := buildFetcher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	startup.LogFetchers(cfg)

	if !noVips {
		media.InitVips()
	}
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	a := &app{
		cfg:     cfg,
		src:     src,
		sess:    session.New(fetcher, cfg.SessionConfig(monitor)),
		monitor: monitor,
	}
	if len(src.refs) > 0 {
		if err := a.sess.Open(src.refs, src.start); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// watch appends images created under the opened directory until ctx is
// done. An empty session is opened by the first one.
func (a *app) watch(ctx context.Context) error {
	if a.src.scanner == nil {
		return fmt.Errorf("--watch needs a directory")
	}
	return a.src.scanner.Watch(ctx, func(e media.Entry) {
		ref := e.Reference(a.src.quality)
		var err error
		if a.sess.State() == session.StateIdle {
			err = a.sess.Open([]media.Reference{ref}, 0)
		} else {
			err = a.sess.AddReferences([]media.Reference{ref})
		}
		if err != nil {
			logging.Warn("could not add %s: %v", e.Path, err)
		}
	})
}

// Close tears the session down and stops background work.
func (a *app) Close() {
	_ = a.sess.Close()
	a.monitor.Stop()
	media.ShutdownVips()
}

var noVips bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&noVips, "no-vips", false, "Generate thumbnails without libvips")
}
