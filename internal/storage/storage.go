package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/pkg/logger"
)

var bucketName = []byte("exchanges")

// ErrEmptyID is returned when recording an exchange without an ID.
var ErrEmptyID = errors.New("exchange id is empty")

// Journal records completed chat exchanges in a BBolt file. It is write-once
// per exchange and never feeds history back into a conversation.
type Journal struct {
	db *bbolt.DB
}

// NewJournal opens (or creates) the journal at path.
func NewJournal(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("exchange journal initialized", zap.String("path", path))
	return &Journal{db: db}, nil
}

// Record saves ex under ex.ID, replacing any previous entry.
func (j *Journal) Record(ex models.Exchange) error {
	if ex.ID == "" {
		return ErrEmptyID
	}
	data, err := json.Marshal(ex)
	if err != nil {
		return err
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(ex.ID), data)
	})
}

// Get retrieves an exchange by ID.
// Returns the exchange and true if found, nil and false otherwise
func (j *Journal) Get(id string) (*models.Exchange, bool) {
	var ex *models.Exchange

	err := j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(id))
		if data == nil {
			return nil
		}
		ex = &models.Exchange{}
		return json.Unmarshal(data, ex)
	})

	if err != nil || ex == nil {
		return nil, false
	}
	return ex, true
}

// Delete removes an exchange by ID. Deleting a missing ID is not an error.
func (j *Journal) Delete(id string) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(id))
	})
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}
