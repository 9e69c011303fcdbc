package document

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/class"
	"github.com/trezcool/mwalimu/core/user"
)

var (
	ErrNotFound = core.NewNotFoundError("document")

	errNotMember = core.NewForbiddenError("you are not assigned to this class")
	errNotOwner  = core.NewForbiddenError("only the owner or an admin can delete this document")
)

type (
	Repository interface {
		CreateDocument(ctx context.Context, d Document, exec ...core.DBExecutor) (Document, error)
		// QueryDocuments returns the documents matching filter, newest first.
		QueryDocuments(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Document, error)
		GetDocument(ctx context.Context, id string, exec ...core.DBExecutor) (Document, error)
		DeleteDocument(ctx context.Context, id string, exec ...core.DBExecutor) error
		// DetachClass unlinks the documents of a class, keeping them with their owners.
		DetachClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		// Upload stores f for owner, optionally sharing it with classID.
		Upload(ctx context.Context, owner user.User, classID string, f core.UploadedFile) (Document, error)
		// List returns the documents of usr, or those of a class when filter.ClassID is set.
		List(ctx context.Context, usr user.User, filter QueryFilter) ([]Document, error)
		Get(ctx context.Context, usr user.User, id string) (Document, error)
		Delete(ctx context.Context, usr user.User, id string) error
		// AbsPath returns the location on disk of d.
		AbsPath(d Document) string
	}

	service struct {
		repo    Repository
		classes class.Repository
		ledger  assignment.Service
		media   core.MediaStorage
	}

	classDetacher struct {
		repo Repository
	}
)

var (
	_ Service          = (*service)(nil)
	_ class.Dependents = classDetacher{}
)

func NewService(repo Repository, classes class.Repository, ledger assignment.Service, media core.MediaStorage) Service {
	return &service{repo: repo, classes: classes, ledger: ledger, media: media}
}

// ClassDependent returns the class.Dependents detaching documents from deleted classes.
func ClassDependent(repo Repository) class.Dependents {
	return classDetacher{repo: repo}
}

func (cd classDetacher) DeleteByClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error) {
	return cd.repo.DetachClass(ctx, classID, exec...)
}

// roleFolder names the media folder of the highest role of usr.
func roleFolder(usr user.User) string {
	switch {
	case usr.IsAdmin():
		return user.RoleAdmin
	case usr.IsTutor():
		return user.RoleTutor
	case usr.IsStudent():
		return user.RoleStudent
	}
	return "users"
}

// canAccessClass reports whether usr is an admin or a member (student or tutor) of classID.
func (svc *service) canAccessClass(ctx context.Context, usr user.User, classID string) (bool, error) {
	if usr.IsAdmin() {
		return true, nil
	}
	for _, ledger := range []assignment.Ledger{assignment.Students, assignment.Tutors} {
		ok, err := svc.ledger.IsMember(ctx, ledger, usr.ID, classID)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (svc *service) Upload(ctx context.Context, owner user.User, classID string, f core.UploadedFile) (Document, error) {
	classID = core.CleanString(classID)
	if classID != "" {
		if _, err := svc.classes.GetClass(ctx, classID); err != nil {
			return Document{}, err
		}
		ok, err := svc.canAccessClass(ctx, owner, classID)
		if err != nil {
			return Document{}, err
		}
		if !ok {
			return Document{}, errNotMember
		}
	}

	stored, err := svc.media.SaveDocument(ctx, filepath.ToSlash(filepath.Join(roleFolder(owner), "documents")), f)
	if err != nil {
		return Document{}, err
	}
	d, err := svc.repo.CreateDocument(ctx, Document{
		OwnerID:     owner.ID,
		ClassID:     classID,
		Name:        filepath.Base(f.Filename),
		Path:        stored.Path,
		URL:         stored.URL,
		ContentType: stored.ContentType,
		Size:        stored.Size,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		_ = svc.media.Remove(stored.Path)
		return Document{}, errors.Wrap(err, "creating document")
	}
	return d, nil
}

func (svc *service) List(ctx context.Context, usr user.User, filter QueryFilter) ([]Document, error) {
	filter.Clean()
	if filter.ClassID == "" {
		filter.OwnerID = usr.ID
	} else {
		filter.OwnerID = ""
		ok, err := svc.canAccessClass(ctx, usr, filter.ClassID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errNotMember
		}
	}
	return svc.repo.QueryDocuments(ctx, filter)
}

func (svc *service) Get(ctx context.Context, usr user.User, id string) (Document, error) {
	d, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if d.OwnerID == usr.ID || usr.IsAdmin() {
		return d, nil
	}
	if d.ClassID != "" {
		ok, err := svc.canAccessClass(ctx, usr, d.ClassID)
		if err != nil {
			return Document{}, err
		}
		if ok {
			return d, nil
		}
	}
	return Document{}, ErrNotFound
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	d, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if d.OwnerID != usr.ID && !usr.IsAdmin() {
		return errNotOwner
	}
	if err := svc.repo.DeleteDocument(ctx, id); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	_ = svc.media.Remove(d.Path)
	return nil
}

func (svc *service) AbsPath(d Document) string {
	return svc.media.AbsPath(d.Path)
}
