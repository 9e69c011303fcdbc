package class

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
)

var ErrNotFound = core.NewNotFoundError("class")

type (
	Repository interface {
		CreateClass(ctx context.Context, c Class, exec ...core.DBExecutor) (Class, error)
		// QueryClasses applies AND operation on available QueryFilter fields.
		QueryClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		UpdateClass(ctx context.Context, c Class, exec ...core.DBExecutor) (Class, error)
		DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nc NewClass) (Class, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		GetByID(ctx context.Context, id string) (Class, error)
		// GetByIDs returns the classes among ids, and the ids left unresolved.
		GetByIDs(ctx context.Context, ids []string) ([]Class, []string, error)
		Update(ctx context.Context, c Class, uc UpdateClass) (Class, error)
		// Delete removes the class and, in the same transaction, everything referencing it.
		Delete(ctx context.Context, id string) error
	}

	service struct {
		db         core.DB
		repo       Repository
		dependents []Dependents
	}
)

var _ Service = (*service)(nil)

// NewService returns a class Service. dependents are purged, in order, before a class is deleted.
func NewService(db core.DB, repo Repository, dependents ...Dependents) Service {
	return &service{db: db, repo: repo, dependents: dependents}
}

func (svc *service) Create(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	return svc.repo.CreateClass(ctx, Class{
		Name:      nc.Name,
		Major:     nc.Major,
		Subject:   nc.Subject,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) GetByIDs(ctx context.Context, ids []string) ([]Class, []string, error) {
	ids = core.CleanStrings(ids)
	if len(ids) == 0 {
		return []Class{}, []string{}, nil
	}
	classes, err := svc.repo.QueryClasses(ctx, &QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying classes by ID")
	}
	return classes, core.Difference(ids, IDs(classes)), nil
}

func (svc *service) Update(ctx context.Context, c Class, uc UpdateClass) (Class, error) {
	c.Name = uc.Name
	c.Major = uc.Major
	c.Subject = uc.Subject
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, c)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetClass(ctx, id); err != nil {
		return err
	}
	return core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		for _, dep := range svc.dependents {
			if _, err := dep.DeleteByClass(ctx, id, exec); err != nil {
				return errors.Wrap(err, "deleting class dependents")
			}
		}
		return errors.Wrap(svc.repo.DeleteClass(ctx, id, exec), "deleting class")
	})
}
