package store

import (
	"context"
	"encoding/json"
	"fmt"

	"pillsreminder/internal/models"

	"github.com/rs/zerolog"
)

const actorQueueSize = 64

// Store gives typed access to the three documents. Every call for a given
// document is serialized through that document's actor, so concurrent updates
// never lose writes within this process.
type Store struct {
	backend Backend
	log     zerolog.Logger

	users   *actor
	history *actor
	archive *actor
}

// New starts one actor per document
func New(backend Backend, log zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		log:     log.With().Str("component", "store").Logger(),
		users:   newActor(models.UsersDocumentName, actorQueueSize),
		history: newActor(models.HistoryDocumentName, actorQueueSize),
		archive: newActor(models.ArchiveDocumentName, actorQueueSize),
	}
}

// Close stops the actors. Calls after Close return ErrClosed.
func (s *Store) Close() {
	s.users.stop()
	s.history.stop()
	s.archive.stop()
}

// Users returns a private copy of the users document
func (s *Store) Users(ctx context.Context) (*models.UsersDocument, error) {
	var out *models.UsersDocument
	err := s.users.do(ctx, func(ctx context.Context) error {
		doc, err := s.loadUsers(ctx)
		out = doc
		return err
	})
	return out, err
}

// UpdateUsers loads the users document, applies fn and saves the result.
// If fn returns an error nothing is written and the error is returned as is.
func (s *Store) UpdateUsers(ctx context.Context, fn func(*models.UsersDocument) error) error {
	return s.users.do(ctx, func(ctx context.Context) error {
		doc, err := s.loadUsers(ctx)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		doc.SchemaVersion = models.SchemaVersion
		return s.save(ctx, models.UsersDocumentName, doc)
	})
}

// History returns a private copy of the event log
func (s *Store) History(ctx context.Context) (*models.HistoryDocument, error) {
	var out *models.HistoryDocument
	err := s.history.do(ctx, func(ctx context.Context) error {
		doc, err := s.loadHistory(ctx)
		out = doc
		return err
	})
	return out, err
}

// UpdateHistory applies fn to the event log
func (s *Store) UpdateHistory(ctx context.Context, fn func(*models.HistoryDocument) error) error {
	return s.history.do(ctx, func(ctx context.Context) error {
		doc, err := s.loadHistory(ctx)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		doc.SchemaVersion = models.SchemaVersion
		return s.save(ctx, models.HistoryDocumentName, doc)
	})
}

// Archive returns a private copy of the archive
func (s *Store) Archive(ctx context.Context) (*models.ArchiveDocument, error) {
	var out *models.ArchiveDocument
	err := s.archive.do(ctx, func(ctx context.Context) error {
		doc, err := s.loadArchive(ctx)
		out = doc
		return err
	})
	return out, err
}

// UpdateArchive applies fn to the archive
func (s *Store) UpdateArchive(ctx context.Context, fn func(*models.ArchiveDocument) error) error {
	return s.archive.do(ctx, func(ctx context.Context) error {
		doc, err := s.loadArchive(ctx)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		doc.SchemaVersion = models.SchemaVersion
		return s.save(ctx, models.ArchiveDocumentName, doc)
	})
}

func (s *Store) loadUsers(ctx context.Context) (*models.UsersDocument, error) {
	doc := &models.UsersDocument{}
	if err := s.load(ctx, models.UsersDocumentName, doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return doc, nil
}

func (s *Store) loadHistory(ctx context.Context) (*models.HistoryDocument, error) {
	doc := &models.HistoryDocument{}
	if err := s.load(ctx, models.HistoryDocumentName, doc); err != nil {
		return nil, err
	}
	if doc.History == nil {
		doc.History = []models.Event{}
	}
	return doc, nil
}

func (s *Store) loadArchive(ctx context.Context) (*models.ArchiveDocument, error) {
	doc := &models.ArchiveDocument{}
	if err := s.load(ctx, models.ArchiveDocumentName, doc); err != nil {
		return nil, err
	}
	if doc.Archive == nil {
		doc.Archive = []models.ArchiveEntry{}
	}
	return doc, nil
}

func (s *Store) load(ctx context.Context, name string, into any) error {
	data, err := s.backend.Load(ctx, name)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode document %s: %w", name, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, name string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", name, err)
	}
	if err := s.backend.Save(ctx, name, data); err != nil {
		return err
	}
	s.log.Debug().Str("document", name).Int("bytes", len(data)).Msg("document saved")
	return nil
}
