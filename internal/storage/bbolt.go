package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/illarion/ofdcrypt/internal/fault"
)

// Bucket names
var (
	ConfigBucket   = []byte("config")   // Version and timestamps
	SessionsBucket = []byte("sessions") // Session id -> JSON Manifest
	DoneBucket     = []byte("done")     // Scope -> nested bucket of container path -> session id
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
)

// ErrNotFound is returned when a manifest does not exist.
var ErrNotFound = errors.New("not found")

// Storage persists transformation state: manifests of finished sessions
// and per-container done markers that survive process restarts.
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a state database
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fault.IO("open state", path, err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Storage) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure. It is safe to call on an
// already initialized database.
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, SessionsBucket, DoneBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}
		created, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

func touch(tx *bolt.Tx) error {
	config := tx.Bucket(ConfigBucket)
	if config == nil {
		return fmt.Errorf("config bucket not found")
	}
	modified, _ := time.Now().MarshalBinary()
	return config.Put(ConfigModified, modified)
}

// MarkDone records that name inside the container identified by scope has
// been transformed by session.
func (s *Storage) MarkDone(scope, name, session string) error {
	if scope == "" || name == "" {
		return fault.Invalid("mark done", "scope and name are required")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		done := tx.Bucket(DoneBucket)
		if done == nil {
			return fmt.Errorf("done bucket not found")
		}
		bucket, err := done.CreateBucketIfNotExists([]byte(scope))
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(name), []byte(session)); err != nil {
			return err
		}
		return touch(tx)
	})
}

// MarkDoneAll records names as transformed by session in one
// transaction: either every marker is written or none is.
func (s *Storage) MarkDoneAll(scope, session string, names ...string) error {
	if scope == "" {
		return fault.Invalid("mark done", "scope is required")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		done := tx.Bucket(DoneBucket)
		if done == nil {
			return fmt.Errorf("done bucket not found")
		}
		bucket, err := done.CreateBucketIfNotExists([]byte(scope))
		if err != nil {
			return err
		}
		for _, name := range names {
			if name == "" {
				return fault.Invalid("mark done", "empty name")
			}
			if err := bucket.Put([]byte(name), []byte(session)); err != nil {
				return err
			}
		}
		return touch(tx)
	})
}

// UnmarkDone removes the done markers of names in scope. Missing markers
// are ignored.
func (s *Storage) UnmarkDone(scope string, names ...string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := scopeBucket(tx, scope)
		if bucket == nil {
			return nil
		}
		for _, name := range names {
			if err := bucket.Delete([]byte(name)); err != nil {
				return err
			}
		}
		return touch(tx)
	})
}

// IsDone reports whether name in scope was transformed, and by which
// session.
func (s *Storage) IsDone(scope, name string) (string, bool, error) {
	var session string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := scopeBucket(tx, scope)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(name)); v != nil {
			session = string(v)
			found = true
		}
		return nil
	})
	return session, found, err
}

// DonePaths returns every done marker in scope as name -> session id.
func (s *Storage) DonePaths(scope string) (map[string]string, error) {
	paths := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := scopeBucket(tx, scope)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			paths[string(k)] = string(v)
			return nil
		})
	})
	return paths, err
}

// ClearDone removes every done marker in scope.
func (s *Storage) ClearDone(scope string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		done := tx.Bucket(DoneBucket)
		if done == nil || done.Bucket([]byte(scope)) == nil {
			return nil
		}
		if err := done.DeleteBucket([]byte(scope)); err != nil {
			return err
		}
		return touch(tx)
	})
}

func scopeBucket(tx *bolt.Tx, scope string) *bolt.Bucket {
	done := tx.Bucket(DoneBucket)
	if done == nil {
		return nil
	}
	return done.Bucket([]byte(scope))
}

// PutManifest stores m under its ID, replacing any previous version.
func (s *Storage) PutManifest(m *Manifest) error {
	if m == nil || m.ID == "" {
		return fault.Invalid("put manifest", "manifest has no id")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		sessions := tx.Bucket(SessionsBucket)
		if sessions == nil {
			return fmt.Errorf("sessions bucket not found")
		}
		if err := sessions.Put([]byte(m.ID), data); err != nil {
			return err
		}
		return touch(tx)
	})
}

// GetManifest returns the manifest of session id.
func (s *Storage) GetManifest(id string) (*Manifest, error) {
	var m *Manifest
	err := s.db.View(func(tx *bolt.Tx) error {
		sessions := tx.Bucket(SessionsBucket)
		if sessions == nil {
			return fmt.Errorf("sessions bucket not found")
		}
		data := sessions.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("manifest %s: %w", id, ErrNotFound)
		}
		m = &Manifest{}
		return json.Unmarshal(data, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListManifests returns all manifests, oldest first.
func (s *Storage) ListManifests() ([]*Manifest, error) {
	var manifests []*Manifest
	err := s.db.View(func(tx *bolt.Tx) error {
		sessions := tx.Bucket(SessionsBucket)
		if sessions == nil {
			return nil
		}
		return sessions.ForEach(func(k, v []byte) error {
			m := &Manifest{}
			if err := json.Unmarshal(v, m); err != nil {
				return fmt.Errorf("manifest %s: %w", k, err)
			}
			manifests = append(manifests, m)
			return nil
		})
	})
	sort.SliceStable(manifests, func(i, j int) bool {
		return manifests[i].Created.Before(manifests[j].Created)
	})
	return manifests, err
}

// DeleteManifest removes the manifest of session id.
func (s *Storage) DeleteManifest(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		sessions := tx.Bucket(SessionsBucket)
		if sessions == nil {
			return nil
		}
		if err := sessions.Delete([]byte(id)); err != nil {
			return err
		}
		return touch(tx)
	})
}

// Compact creates a compacted copy of the database, removing unused space
// left by deleted manifests and cleared done markers.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	// bolt.Compact walks nested buckets, which the done scopes rely on.
	if err := bolt.Compact(dst, s.db, 0); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	s.db, err = bolt.Open(srcPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
