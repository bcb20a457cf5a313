package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/docsync/agent/internal/docsync"
)

// DocumentStore provides an in-memory implementation for development/testing.
type DocumentStore struct {
	mu    sync.RWMutex
	docs  map[string]docsync.Document
	order []string
}

// NewDocumentStore constructs a DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]docsync.Document)}
}

// CreateDocument stores a classified document.
func (s *DocumentStore) CreateDocument(_ context.Context, doc docsync.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return errors.New("document already exists")
	}
	s.docs[doc.ID] = doc
	s.order = append(s.order, doc.ID)
	return nil
}

// ListDocuments returns a job's documents in creation order.
func (s *DocumentStore) ListDocuments(_ context.Context, jobID string) ([]docsync.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docsync.Document
	for _, id := range s.order {
		if doc := s.docs[id]; doc.JobID == jobID {
			out = append(out, doc)
		}
	}
	return out, nil
}

// ListPendingUploads returns a job's accepted, not-yet-uploaded documents in
// creation order.
func (s *DocumentStore) ListPendingUploads(_ context.Context, jobID string) ([]docsync.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docsync.Document
	for _, id := range s.order {
		if doc := s.docs[id]; doc.JobID == jobID && doc.Accepted && !doc.Uploaded {
			out = append(out, doc)
		}
	}
	return out, nil
}

// MarkUploaded records a successful upload.
func (s *DocumentStore) MarkUploaded(_ context.Context, docID, remoteID string, fileSize int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		return docsync.ErrNotFound
	}
	doc.Uploaded = true
	doc.RemoteID = remoteID
	doc.FileSize = fileSize
	s.docs[docID] = doc
	return nil
}
