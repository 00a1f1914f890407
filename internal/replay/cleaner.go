package replay

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"apexgp/sim/internal/logging"
)

// RetentionPolicy bounds how many replay bundles stay on disk.
type RetentionPolicy struct {
	// MaxRaces keeps at most this many bundles, newest first. Zero disables.
	MaxRaces int
	// MaxAge prunes bundles older than this. Zero disables.
	MaxAge time.Duration
}

// StorageStats summarises the disk footprint after the last sweep.
type StorageStats struct {
	Races     int
	Bytes     int64
	LastSweep time.Time
}

// Cleaner prunes old replay bundles according to a retention policy.
type Cleaner struct {
	mu     sync.Mutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewCleaner constructs a cleaner for the replay root directory.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run sweeps on the interval until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	//1.- Sweep eagerly so retention applies at startup, not an hour later.
	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// RunOnce performs a single sweep.
func (c *Cleaner) RunOnce() {
	if c == nil {
		return
	}
	c.sweep()
}

// Stats returns the footprint recorded by the last sweep.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

type bundle struct {
	path    string
	modTime time.Time
	size    int64
}

func (c *Cleaner) sweep() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("replay retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		return
	}

	//1.- Every bundle is a directory containing a manifest.
	var bundles []bundle
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, "manifest.json")); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		bundles = append(bundles, bundle{path: path, modTime: info.ModTime(), size: dirSize(path)})
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].modTime.After(bundles[j].modTime) })

	now := c.now()
	stats := StorageStats{LastSweep: now}
	for idx, b := range bundles {
		tooMany := c.policy.MaxRaces > 0 && idx >= c.policy.MaxRaces
		tooOld := c.policy.MaxAge > 0 && now.Sub(b.modTime) > c.policy.MaxAge
		if tooMany || tooOld {
			if err := os.RemoveAll(b.path); err != nil {
				c.log.Warn("replay retention removal failed", logging.Error(err), logging.String("bundle", b.path))
				continue
			}
			c.log.Info("replay bundle pruned", logging.String("bundle", b.path))
			continue
		}
		stats.Races++
		stats.Bytes += b.size
	}

	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
