package document

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	documentBucketName = "documents"
	noteBucketName     = "delivery_notes"
	pairingBucketName  = "pairings"
)

// DB defines the interface for database operations
type DB interface {
	// SaveDocument saves a document to the database
	SaveDocument(doc *Document) error

	// GetDocument retrieves a document by ID
	GetDocument(id string) (*Document, error)

	// ListDocuments returns all documents
	ListDocuments() ([]*Document, error)

	// DeleteDocument removes a document from the database
	DeleteDocument(id string) error

	// SaveDeliveryNote saves a delivery note to the database
	SaveDeliveryNote(note *DeliveryNote) error

	// GetDeliveryNote retrieves a delivery note by ID
	GetDeliveryNote(id string) (*DeliveryNote, error)

	// ListDeliveryNotes returns all delivery notes
	ListDeliveryNotes() ([]*DeliveryNote, error)

	// SavePairing saves a pairing to the database
	SavePairing(pairing *Pairing) error

	// GetPairing retrieves a pairing by ID
	GetPairing(id string) (*Pairing, error)

	// ListPairings returns all pairings
	ListPairings() ([]*Pairing, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{documentBucketName, noteBucketName, pairingBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func (b *BoltDB) put(bucket, id string, v any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", bucket, err)
		}
		return tx.Bucket([]byte(bucket)).Put([]byte(id), data)
	})
}

func (b *BoltDB) get(bucket, kind, id string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s not found: %s", kind, id)
		}
		return json.Unmarshal(data, v)
	})
}

// SaveDocument saves a document to the database
func (b *BoltDB) SaveDocument(doc *Document) error {
	return b.put(documentBucketName, doc.ID, doc)
}

// GetDocument retrieves a document by ID
func (b *BoltDB) GetDocument(id string) (*Document, error) {
	var doc *Document
	if err := b.get(documentBucketName, "document", id, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents
func (b *BoltDB) ListDocuments() ([]*Document, error) {
	docs := make([]*Document, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshaling document: %w", err)
			}
			docs = append(docs, &doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteDocument removes a document from the database
func (b *BoltDB) DeleteDocument(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(documentBucketName)).Delete([]byte(id))
	})
}

// SaveDeliveryNote saves a delivery note to the database
func (b *BoltDB) SaveDeliveryNote(note *DeliveryNote) error {
	return b.put(noteBucketName, note.ID, note)
}

// GetDeliveryNote retrieves a delivery note by ID
func (b *BoltDB) GetDeliveryNote(id string) (*DeliveryNote, error) {
	var note *DeliveryNote
	if err := b.get(noteBucketName, "delivery note", id, &note); err != nil {
		return nil, err
	}
	return note, nil
}

// ListDeliveryNotes returns all delivery notes
func (b *BoltDB) ListDeliveryNotes() ([]*DeliveryNote, error) {
	notes := make([]*DeliveryNote, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(noteBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var note DeliveryNote
			if err := json.Unmarshal(v, &note); err != nil {
				return fmt.Errorf("unmarshaling delivery note: %w", err)
			}
			notes = append(notes, &note)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// SavePairing saves a pairing to the database
func (b *BoltDB) SavePairing(pairing *Pairing) error {
	return b.put(pairingBucketName, pairing.ID, pairing)
}

// GetPairing retrieves a pairing by ID
func (b *BoltDB) GetPairing(id string) (*Pairing, error) {
	var pairing *Pairing
	if err := b.get(pairingBucketName, "pairing", id, &pairing); err != nil {
		return nil, err
	}
	return pairing, nil
}

// ListPairings returns all pairings
func (b *BoltDB) ListPairings() ([]*Pairing, error) {
	pairings := make([]*Pairing, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(pairingBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var pairing Pairing
			if err := json.Unmarshal(v, &pairing); err != nil {
				return fmt.Errorf("unmarshaling pairing: %w", err)
			}
			pairings = append(pairings, &pairing)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return pairings, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
