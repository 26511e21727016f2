package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"site-auditor/pkg/log"
	"site-auditor/pkg/models"
	"site-auditor/pkg/utils"
)

// ErrNotFound is returned when a job id has no stored artifact.
var ErrNotFound = errors.New("not found")

// JobStore persists the artifacts of past audit runs keyed by job id. The
// pipeline itself never reads from it; it exists so drivers can fetch
// reports and crawl dumps after the fact.
type JobStore interface {
	SaveReport(jobID string, report *models.Report) error
	GetReport(jobID string) (*models.Report, error)
	SaveCrawl(jobID string, result *models.CrawlResult) error
	GetCrawl(jobID string) (*models.CrawlResult, error)
	SaveScreenshot(jobID string, png []byte) error
	GetScreenshot(jobID string) ([]byte, error)
	ListJobs() ([]JobInfo, error)
	Close() error
}

// JobInfo is the listing view of one stored report.
type JobInfo struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	Score       int       `json:"score"`
	Issues      int       `json:"issues"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewJobID mints a fresh job identifier.
func NewJobID() string {
	return uuid.NewString()
}

const (
	reportKeyPrefix     = "report:"
	crawlKeyPrefix      = "crawl:"
	screenshotKeyPrefix = "shot:"
)

// BadgerStore implements JobStore on an embedded BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerStore opens (or creates) the store under stateDir.
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", stateDir, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(stateDir).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", stateDir, err)
	}
	logger.WithField("path", stateDir).Info("Report store opened")
	return &BadgerStore{db: db, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction
// conflicts. Concurrent transactions on overlapping keys can return
// badger.ErrConflict; these resolve in microseconds, so a tight retry loop
// is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func (s *BadgerStore) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshaling %s: %v", utils.ErrDatabase, key, err)
	}
	return s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *BadgerStore) getJSON(key string, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", utils.ErrDatabase, key, err)
	}
	return nil
}

func (s *BadgerStore) SaveReport(jobID string, report *models.Report) error {
	return s.setJSON(reportKeyPrefix+jobID, report)
}

func (s *BadgerStore) GetReport(jobID string) (*models.Report, error) {
	var report models.Report
	if err := s.getJSON(reportKeyPrefix+jobID, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *BadgerStore) SaveCrawl(jobID string, result *models.CrawlResult) error {
	return s.setJSON(crawlKeyPrefix+jobID, result)
}

func (s *BadgerStore) GetCrawl(jobID string) (*models.CrawlResult, error) {
	var result models.CrawlResult
	if err := s.getJSON(crawlKeyPrefix+jobID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *BadgerStore) SaveScreenshot(jobID string, png []byte) error {
	return s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Set([]byte(screenshotKeyPrefix+jobID), png)
	})
}

func (s *BadgerStore) GetScreenshot(jobID string) ([]byte, error) {
	var png []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(screenshotKeyPrefix + jobID))
		if err != nil {
			return err
		}
		png, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: screenshot %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading screenshot %s: %v", utils.ErrDatabase, jobID, err)
	}
	return png, nil
}

// ListJobs returns a summary of every stored report, newest first.
func (s *BadgerStore) ListJobs() ([]JobInfo, error) {
	var jobs []JobInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(reportKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			jobID := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				var report models.Report
				if err := json.Unmarshal(val, &report); err != nil {
					s.log.Warnf("Skipping unreadable report %s: %v", jobID, err)
					return nil
				}
				jobs = append(jobs, JobInfo{
					ID:          jobID,
					Domain:      report.Domain,
					Score:       report.Score,
					Issues:      len(report.Issues),
					GeneratedAt: report.GeneratedAt,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing jobs: %v", utils.ErrDatabase, err)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].GeneratedAt.After(jobs[j].GeneratedAt)
	})
	return jobs, nil
}

func (s *BadgerStore) Close() error {
	s.log.Info("Closing report store")
	return s.db.Close()
}
