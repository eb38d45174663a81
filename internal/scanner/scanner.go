// Package scanner walks a set of watch folders and reconciles what it
// finds on disk against the Store, the way the pack's GoonHub scan
// service walks a media library with stdlib filepath.WalkDir and reports
// progress through a shared, lockable status struct. No example repo in
// the corpus imports a third-party directory-walking library, so stdlib
// is the idiomatic, pack-consistent choice for this concern.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fennec/internal/domain"
	"fennec/internal/probe"
)

// videoExtensions is the authoritative set of file extensions the
// Scanner recognizes as video, matched case-insensitively.
var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".3gp": true, ".3g2": true,
	".avi": true, ".mkv": true, ".webm": true, ".mxf": true, ".wmv": true,
	".asf": true, ".flv": true, ".ts": true, ".m2ts": true, ".mts": true,
	".mpg": true, ".mpeg": true, ".vob": true, ".ogv": true, ".rm": true,
	".rmvb": true, ".wtv": true, ".dv": true, ".mj2": true, ".bik": true,
	".bk2": true,
}

// IsVideoFile reports whether path has a recognized video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Store is the subset of *store.Store the Scanner depends on.
type Store interface {
	UpsertFile(ctx context.Context, f domain.File) (id int64, created bool, err error)
	Unchanged(ctx context.Context, path string, size int64, mtime time.Time) (bool, error)
	MarkMissing(ctx context.Context, seenPaths []string) (int64, error)
	Enqueue(ctx context.Context, fileID int64) (int64, error)
	DeleteScenesForFile(ctx context.Context, fileID int64) error
}

// Prober probes a video file for metadata. probe.Prober satisfies this.
type Prober interface {
	Probe(ctx context.Context, path string) (probe.Metadata, error)
}

// Scanner walks a set of watch folders and reconciles them against Store.
type Scanner struct {
	store  Store
	prober Prober

	mu       sync.Mutex
	progress domain.ScanProgress
}

// New constructs a Scanner.
func New(store Store, prober Prober) *Scanner {
	return &Scanner{store: store, prober: prober, progress: domain.ScanProgress{Phase: domain.ScanIdle}}
}

// Progress returns a snapshot of the current (or most recent) scan's
// progress, safe to call concurrently from a query-surface endpoint.
func (s *Scanner) Progress() domain.ScanProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Scanner) setPhase(phase domain.ScanPhase) {
	s.mu.Lock()
	s.progress.Phase = phase
	s.mu.Unlock()
}

func (s *Scanner) update(fn func(*domain.ScanProgress)) {
	s.mu.Lock()
	fn(&s.progress)
	s.mu.Unlock()
}

// Run walks every watch folder, classifying each video file as new,
// updated, unchanged or (after the walk) missing, enqueuing enrichment
// work for new and updated files. A per-file error is counted separately
// from an unchanged file (FilesErrored vs FilesSkipped) and does not
// abort the whole scan; an unreadable or unmounted watch root is
// recorded and the scan continues with the rest.
func (s *Scanner) Run(ctx context.Context, watchFolders []string) error {
	s.mu.Lock()
	s.progress = domain.ScanProgress{Phase: domain.ScanDiscovering, StartedAt: time.Now()}
	s.mu.Unlock()

	var seenPaths []string
	var unmounted []string
	var anyMounted bool

	for _, root := range watchFolders {
		if _, err := os.Stat(root); err != nil {
			unmounted = append(unmounted, root)
			continue
		}
		anyMounted = true

		s.setPhase(domain.ScanProcessingPhase)
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				return nil // skip unreadable entries, keep walking
			}
			if d.IsDir() {
				s.update(func(p *domain.ScanProgress) {
					p.DirsScanned++
					p.CurrentFolder = path
				})
				return nil
			}
			if !IsVideoFile(path) {
				return nil
			}

			s.update(func(p *domain.ScanProgress) { p.FilesFound++ })
			seenPaths = append(seenPaths, path)

			if err := s.processFile(ctx, path); err != nil {
				s.update(func(p *domain.ScanProgress) { p.FilesErrored++ })
				return nil
			}
			return nil
		})
		if walkErr != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	s.setPhase(domain.ScanCheckingMissing)
	if anyMounted {
		if _, err := s.store.MarkMissing(ctx, seenPaths); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.progress.Phase = domain.ScanComplete
	s.progress.FinishedAt = time.Now()
	s.progress.LastScanDuration = s.progress.FinishedAt.Sub(s.progress.StartedAt)
	s.progress.UnmountedRoots = unmounted
	s.mu.Unlock()
	return nil
}

// processFile classifies a single discovered path as unchanged, new or
// updated, upserting the File row and enqueuing enrichment work for new
// and updated files.
func (s *Scanner) processFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	unchanged, err := s.store.Unchanged(ctx, path, info.Size(), info.ModTime())
	if err != nil {
		return err
	}
	if unchanged {
		s.update(func(p *domain.ScanProgress) {
			p.FilesSkipped++
			p.FilesProcessed++
		})
		return nil
	}

	md, err := s.prober.Probe(ctx, path)
	if err != nil {
		return err
	}

	f := domain.File{
		Path:            path,
		Filename:        filepath.Base(path),
		ParentFolder:    filepath.Dir(path),
		DurationSeconds: md.DurationSeconds,
		Width:           md.Width,
		Height:          md.Height,
		FrameRate:       md.FrameRate,
		Codec:           md.Codec,
		AudioTracks:     md.AudioTracks,
		PixelFormat:     md.PixelFormat,
		ColorSpace:      md.ColorSpace,
		ColorTransfer:   md.ColorTransfer,
		ColorPrimaries:  md.ColorPrimaries,
		SizeBytes:       info.Size(),
		FSModifiedAt:    info.ModTime(),
	}

	id, created, err := s.store.UpsertFile(ctx, f)
	if err != nil {
		return err
	}
	if !created {
		if err := s.store.DeleteScenesForFile(ctx, id); err != nil {
			return err
		}
	}
	if _, err := s.store.Enqueue(ctx, id); err != nil {
		return err
	}

	s.update(func(p *domain.ScanProgress) {
		p.FilesProcessed++
		if created {
			p.FilesNew++
		} else {
			p.FilesUpdated++
		}
	})
	return nil
}
