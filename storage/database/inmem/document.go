package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/document"
)

type documentRepository struct {
	db *DB
}

var _ document.Repository = (*documentRepository)(nil)

func NewDocumentRepository(db *DB) document.Repository {
	return &documentRepository{db: db}
}

func (repo *documentRepository) CreateDocument(_ context.Context, d document.Document, _ ...core.DBExecutor) (document.Document, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	d.ID = newID()
	repo.db.documents[d.ID] = &d
	return d, nil
}

func (repo *documentRepository) QueryDocuments(_ context.Context, filter document.QueryFilter, _ ...core.DBExecutor) ([]document.Document, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	docs := make([]document.Document, 0)
	for _, d := range repo.db.documents {
		if filter.Match(*d) {
			docs = append(docs, *d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (repo *documentRepository) GetDocument(_ context.Context, id string, _ ...core.DBExecutor) (document.Document, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.documents[id]; ok {
		return *d, nil
	}
	return document.Document{}, document.ErrNotFound
}

func (repo *documentRepository) DeleteDocument(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.documents[id]; !ok {
		return document.ErrNotFound
	}
	delete(repo.db.documents, id)
	return nil
}

func (repo *documentRepository) DetachClass(_ context.Context, classID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, d := range repo.db.documents {
		if d.ClassID == classID {
			d.ClassID = ""
			n++
		}
	}
	return n, nil
}
