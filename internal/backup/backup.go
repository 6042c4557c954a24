// Package backup periodically snapshots the SQLite database and ships the
// snapshot to object storage, keeping a bounded number of copies.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"blogsite/internal/repository/sqlite"
	"blogsite/internal/storage"
)

const snapshotTimeLayout = "20060102T150405Z"

// snapshotName matches the object names RunOnce writes.
var snapshotName = regexp.MustCompile(`^\d{8}T\d{6}Z-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.db$`)

type Config struct {
	Bucket    string
	KeyPrefix string
	Interval  time.Duration
	Keep      int
	TempDir   string
	Logger    *logrus.Logger
}

// Scheduler runs database backups on a fixed interval.
type Scheduler interface {
	Start(ctx context.Context) error
	Shutdown()
	RunOnce(ctx context.Context) (string, error)
}

type scheduler struct {
	cfg     Config
	db      *sql.DB
	storage storage.Service
	now     func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewScheduler(cfg Config, db *sql.DB, store storage.Service) Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 7
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &scheduler{
		cfg:     cfg,
		db:      db,
		storage: store,
		now:     time.Now,
	}
}

func (s *scheduler) Start(ctx context.Context) error {
	if s.cfg.Bucket == "" {
		return fmt.Errorf("backup bucket is required")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.cfg.Logger.Warnf("database backup: %v", err)
				}
			}
		}
	}()

	s.cfg.Logger.Infof("backup scheduler started, every %s to s3://%s/%s", s.cfg.Interval, s.cfg.Bucket, s.cfg.KeyPrefix)
	return nil
}

func (s *scheduler) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.cfg.Logger.Info("backup scheduler stopped")
}

// RunOnce snapshots, uploads and prunes. It returns the uploaded location.
func (s *scheduler) RunOnce(ctx context.Context) (string, error) {
	dir, err := os.MkdirTemp(s.cfg.TempDir, "blogsite-backup-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	name := fmt.Sprintf("%s-%s.db", s.now().UTC().Format(snapshotTimeLayout), uuid.NewString())
	local := filepath.Join(dir, name)
	if err := sqlite.Snapshot(ctx, s.db, local); err != nil {
		return "", err
	}

	log := s.cfg.Logger.WithField("snapshot", name)
	location, err := s.storage.UploadFile(ctx, local, storage.UploadOptions{
		Bucket: s.cfg.Bucket,
		Key:    s.objectKey(name),
		ProgressCallback: func(done, total int64) {
			log.Debugf("uploaded %d/%d bytes", done, total)
		},
	})
	if err != nil {
		return "", err
	}
	log.Infof("database backup stored at %s", location)

	if err := s.prune(ctx); err != nil {
		return location, err
	}
	return location, nil
}

func (s *scheduler) objectKey(name string) string {
	if s.cfg.KeyPrefix == "" {
		return name
	}
	return path.Join(s.cfg.KeyPrefix, name)
}

// prune deletes the oldest snapshots beyond Keep. Only objects named like a
// snapshot directly under the prefix are considered; names sort chronologically.
func (s *scheduler) prune(ctx context.Context) error {
	prefix := ""
	if s.cfg.KeyPrefix != "" {
		prefix = s.cfg.KeyPrefix + "/"
	}
	objects, err := s.storage.ListObjects(ctx, s.cfg.Bucket, storage.ListOptions{
		Prefix: prefix,
		Match:  func(key string) bool { return snapshotName.MatchString(path.Base(key)) },
	})
	if err != nil {
		return err
	}
	if len(objects) <= s.cfg.Keep {
		return nil
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)

	stale := keys[:len(keys)-s.cfg.Keep]
	if err := s.storage.DeleteObjects(ctx, s.cfg.Bucket, stale); err != nil {
		return err
	}
	s.cfg.Logger.Infof("pruned %d old database backups", len(stale))
	return nil
}
