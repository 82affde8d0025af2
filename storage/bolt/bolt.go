// Package boltdb stores the app records in a single bbolt file. Used by single-node deployments.
package boltdb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	bucketUsers     = []byte("users")
	bucketSchedules = []byte("schedules")
	bucketBacklogs  = []byte("backlogs")
	bucketPlans     = []byte("plans")

	buckets = [][]byte{bucketUsers, bucketSchedules, bucketBacklogs, bucketPlans}
)

type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the bolt file at path along with its buckets.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt file")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return errors.Wrapf(err, "creating bucket %s", b)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func get(tx *bbolt.Tx, bucket []byte, key string, v interface{}) (bool, error) {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return false, nil
	}
	return true, errors.Wrapf(json.Unmarshal(data, v), "decoding %s/%s", bucket, key)
}

func put(tx *bbolt.Tx, bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding %s/%s", bucket, key)
	}
	return errors.Wrapf(tx.Bucket(bucket).Put([]byte(key), data), "writing %s/%s", bucket, key)
}
