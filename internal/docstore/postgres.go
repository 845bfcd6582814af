package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore keeps documents as jsonb rows of the documents table. Writes publish
// the touched collection on the Notifier; live queries re-read on every notification.
type PostgresStore struct {
	db       *gorm.DB
	notifier Notifier
	Now      func() time.Time
}

func NewPostgresStore(db *gorm.DB, notifier Notifier) *PostgresStore {
	return &PostgresStore{db: db, notifier: notifier, Now: time.Now}
}

func (s *PostgresStore) Create(ctx context.Context, collection string, data Document) (string, error) {
	doc, err := prepareCreate(data, s.Now())
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	row := models.Document{
		ID:         uuid.New(),
		Collection: collection,
		Data:       datatypes.JSON(raw),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	s.publish(ctx, collection)
	return row.ID.String(), nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	return getRow(s.db.WithContext(ctx), collection, id, false)
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch Document) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.Update(collection, id, patch)
	})
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.Delete(collection, id)
	})
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("collection = ?", q.Collection)
	if q.OrderBy != "" {
		query = query.Clauses(clause.OrderBy{
			Expression: clause.Expr{
				SQL:                "data->>? " + q.Direction.String() + " NULLS LAST, id ASC",
				Vars:               []interface{}{q.OrderBy},
				WithoutParentheses: true,
			},
		})
	} else {
		query = query.Order("id ASC")
	}

	var rows []models.Document
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", q.Collection, err)
	}

	snaps := make([]Snapshot, 0, len(rows))
	for i := range rows {
		snap, err := decodeRow(&rows[i])
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *PostgresStore) Listen(ctx context.Context, q Query, onSnapshot func([]Snapshot), onError func(error)) (Listener, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	feed, err := s.notifier.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	initial, err := s.List(ctx, q)
	if err != nil {
		feed.Close()
		cancel()
		return nil, err
	}
	onSnapshot(initial)

	var stopped atomic.Bool
	fail := func(err error) {
		if stopped.Load() || onError == nil {
			return
		}
		onError(err)
	}

	go func() {
		defer feed.Close()
		for {
			select {
			case <-ctx.Done():
				fail(ErrListenerStopped)
				return
			case collection, ok := <-feed.C():
				if !ok {
					if ctx.Err() != nil {
						fail(ErrListenerStopped)
					} else {
						fail(ErrFeedClosed)
					}
					return
				}
				if collection != "" && collection != q.Collection {
					continue
				}
				drain(feed.C())

				snaps, err := s.List(ctx, q)
				if err != nil {
					if ctx.Err() != nil {
						fail(ErrListenerStopped)
					} else {
						fail(err)
					}
					return
				}
				if stopped.Load() {
					return
				}
				onSnapshot(snaps)
			}
		}
	}()

	return listenerFunc(func() {
		stopped.Store(true)
		cancel()
	}), nil
}

// drain discards queued notifications; the next List covers all of them.
func drain(c <-chan string) {
	for {
		select {
		case _, ok := <-c:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (s *PostgresStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	touched := make(map[string]struct{})
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&postgresTx{db: db, now: s.Now(), touched: touched})
	})
	if err != nil {
		return err
	}
	for collection := range touched {
		s.publish(ctx, collection)
	}
	return nil
}

// publish failures only delay live queries, so they are logged rather than returned.
func (s *PostgresStore) publish(ctx context.Context, collection string) {
	if err := s.notifier.Publish(ctx, collection); err != nil {
		slog.Warn("failed to publish document change", "collection", collection, "error", err)
	}
}

type postgresTx struct {
	db      *gorm.DB
	now     time.Time
	touched map[string]struct{}
}

func (tx *postgresTx) Get(collection, id string) (Snapshot, error) {
	return getRow(tx.db, collection, id, true)
}

func (tx *postgresTx) Update(collection, id string, patch Document) error {
	current, err := getRow(tx.db, collection, id, true)
	if err != nil {
		return err
	}
	next, err := applyPatch(current.Data, patch, tx.now)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	err = tx.db.Model(&models.Document{}).
		Where("collection = ? AND id = ?", collection, id).
		Update("data", datatypes.JSON(raw)).Error
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	tx.touched[collection] = struct{}{}
	return nil
}

func (tx *postgresTx) Delete(collection, id string) error {
	docID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	result := tx.db.Where("collection = ? AND id = ?", collection, docID).Delete(&models.Document{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	tx.touched[collection] = struct{}{}
	return nil
}

func getRow(db *gorm.DB, collection, id string, lock bool) (Snapshot, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return Snapshot{}, ErrNotFound
	}

	query := db
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row models.Document
	if err := query.Where("collection = ? AND id = ?", collection, docID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("failed to read document: %w", err)
	}
	return decodeRow(&row)
}

func decodeRow(row *models.Document) (Snapshot, error) {
	doc := Document{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &doc); err != nil {
			return Snapshot{}, fmt.Errorf("failed to decode document %s: %w", row.ID, err)
		}
	}
	return Snapshot{ID: row.ID.String(), Data: doc}, nil
}
