// Package storage persists model load outcomes so operators can see which
// artifact (by path and checksum) each condition served over time.
//
// It uses BoltDB with one bucket keyed by "condition_timestamp", which keeps
// each condition's history contiguous and ordered for cursor scans.
// Predictions are never stored.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"healthrisk/internal/ml"

	"go.etcd.io/bbolt"
)

const (
	loadsBucket = "model_loads"
	dbFile      = "healthrisk.db"
)

// Catalog records artifact load results in BoltDB.
type Catalog struct {
	db *bbolt.DB
}

// New opens (or creates) the catalog database inside dataPath.
func New(dataPath string) (*Catalog, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(loadsBucket)); err != nil {
			return fmt.Errorf("create %s bucket: %w", loadsBucket, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func loadKey(condition string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%019d", condition, ts.UnixNano()))
}

// RecordLoads stores every result in a single transaction.
func (c *Catalog) RecordLoads(results []ml.ArtifactInfo) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(loadsBucket))
		for _, r := range results {
			if r.Condition == "" {
				return fmt.Errorf("load record has no condition")
			}
			if r.LoadedAt.IsZero() {
				r.LoadedAt = time.Now().UTC()
			}
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal load record: %w", err)
			}
			if err := b.Put(loadKey(string(r.Condition), r.LoadedAt), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordLoad stores one result.
func (c *Catalog) RecordLoad(result ml.ArtifactInfo) error {
	return c.RecordLoads([]ml.ArtifactInfo{result})
}

// History returns up to limit load records for condition, newest first.
// A limit of zero or less returns all of them.
func (c *Catalog) History(condition string, limit int) ([]ml.ArtifactInfo, error) {
	var records []ml.ArtifactInfo

	err := c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket([]byte(loadsBucket)).Cursor()
		prefix := []byte(condition + "_")

		// Seek past the last key of this prefix and walk backwards.
		end := append(append([]byte{}, prefix...), 0xff)
		k, v := cur.Seek(end)
		if k == nil {
			k, v = cur.Last()
		} else {
			k, v = cur.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Prev() {
			if _, err := strconv.ParseInt(string(k[len(prefix):]), 10, 64); err != nil {
				continue // another condition whose name extends this one
			}
			var r ml.ArtifactInfo
			if err := json.Unmarshal(v, &r); err != nil {
				continue // Skip malformed records
			}
			records = append(records, r)
			if limit > 0 && len(records) == limit {
				break
			}
		}
		return nil
	})

	return records, err
}

// Latest returns the newest record for every condition that has one.
func (c *Catalog) Latest() (map[string]ml.ArtifactInfo, error) {
	latest := make(map[string]ml.ArtifactInfo)

	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(loadsBucket)).ForEach(func(_, v []byte) error {
			var r ml.ArtifactInfo
			if err := json.Unmarshal(v, &r); err != nil {
				return nil
			}
			if prev, ok := latest[string(r.Condition)]; !ok || !r.LoadedAt.Before(prev.LoadedAt) {
				latest[string(r.Condition)] = r
			}
			return nil
		})
	})

	return latest, err
}
