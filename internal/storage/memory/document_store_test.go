package memory

import (
	"context"
	"testing"

	"github.com/docsync/agent/internal/docsync"
)

func TestDocumentStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()
	ctx := context.Background()

	docs := []docsync.Document{
		{ID: "doc-1", JobID: "job-1", Filename: "valve-data-sheet.pdf", Accepted: true},
		{ID: "doc-2", JobID: "job-1", Filename: "install-guide.pdf", Accepted: false},
		{ID: "doc-3", JobID: "job-2", Filename: "pump-submittal.pdf", Accepted: true},
	}
	for _, d := range docs {
		if err := store.CreateDocument(ctx, d); err != nil {
			t.Fatalf("CreateDocument(%s) error = %v", d.ID, err)
		}
	}
	if err := store.CreateDocument(ctx, docs[0]); err == nil {
		t.Fatal("expected duplicate document error")
	}

	listed, err := store.ListDocuments(ctx, "job-1")
	if err != nil || len(listed) != 2 {
		t.Fatalf("ListDocuments() = %v, %v; want 2 documents", listed, err)
	}
	if listed[0].ID != "doc-1" || listed[1].ID != "doc-2" {
		t.Fatalf("expected creation order, got %+v", listed)
	}

	pending, err := store.ListPendingUploads(ctx, "job-1")
	if err != nil || len(pending) != 1 || pending[0].ID != "doc-1" {
		t.Fatalf("ListPendingUploads() = %v, %v; want only doc-1", pending, err)
	}

	if err := store.MarkUploaded(ctx, "doc-1", "item-1", 2048); err != nil {
		t.Fatalf("MarkUploaded() error = %v", err)
	}
	pending, _ = store.ListPendingUploads(ctx, "job-1")
	if len(pending) != 0 {
		t.Fatalf("expected no pending uploads after MarkUploaded, got %+v", pending)
	}

	listed, _ = store.ListDocuments(ctx, "job-1")
	if !listed[0].Uploaded || listed[0].RemoteID != "item-1" || listed[0].FileSize != 2048 {
		t.Fatalf("expected upload fields persisted, got %+v", listed[0])
	}

	if err := store.MarkUploaded(ctx, "missing", "x", 0); err != docsync.ErrNotFound {
		t.Fatalf("MarkUploaded(missing) error = %v, want ErrNotFound", err)
	}
}
