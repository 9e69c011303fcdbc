package blog

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
)

var (
	ErrNotFound        = core.NewNotFoundError("blog")
	ErrCommentNotFound = core.NewNotFoundError("comment")

	errNotAuthor = core.NewForbiddenError("only the author or an admin can do this")
)

type (
	// Repository stores blogs with their comments & likes.
	Repository interface {
		CreateBlog(ctx context.Context, b Blog) (Blog, error)
		// QueryBlogs returns the blogs matching filter, newest first.
		QueryBlogs(ctx context.Context, filter *QueryFilter) ([]Blog, error)
		GetBlog(ctx context.Context, id string) (Blog, error)
		UpdateBlog(ctx context.Context, b Blog) (Blog, error)
		// DeleteBlog removes the blog with its comments & likes.
		DeleteBlog(ctx context.Context, id string) error

		CreateComment(ctx context.Context, c Comment) (Comment, error)
		// QueryComments returns the comments of a blog, oldest first.
		QueryComments(ctx context.Context, blogID string) ([]Comment, error)
		GetComment(ctx context.Context, id string) (Comment, error)
		DeleteComment(ctx context.Context, id string) error

		// AddLike stores l unless the user already likes the blog; reports whether it was added.
		AddLike(ctx context.Context, l Like) (bool, error)
		// RemoveLike reports whether a like was removed.
		RemoveLike(ctx context.Context, blogID, userID string) (bool, error)
		// CountLikes & CountComments return {blogID: count} for blogIDs.
		CountLikes(ctx context.Context, blogIDs []string) (map[string]int, error)
		CountComments(ctx context.Context, blogIDs []string) (map[string]int, error)
	}

	Service interface {
		Create(ctx context.Context, author user.User, nb NewBlog) (Blog, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Blog, error)
		GetByID(ctx context.Context, id string) (Blog, error)
		Update(ctx context.Context, actor user.User, id string, ub UpdateBlog) (Blog, error)
		SetImage(ctx context.Context, actor user.User, id string, f core.UploadedFile) (Blog, error)
		Delete(ctx context.Context, actor user.User, id string) error

		Comment(ctx context.Context, author user.User, blogID string, nc NewComment) (Comment, error)
		Comments(ctx context.Context, blogID string) ([]Comment, error)
		DeleteComment(ctx context.Context, actor user.User, commentID string) error

		// Like & Unlike are idempotent.
		Like(ctx context.Context, usr user.User, blogID string) (LikeResult, error)
		Unlike(ctx context.Context, usr user.User, blogID string) (LikeResult, error)
	}

	service struct {
		repo   Repository
		media  core.MediaStorage
		events core.EventPublisher
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, media core.MediaStorage, events core.EventPublisher) Service {
	return &service{repo: repo, media: media, events: events}
}

func canEdit(actor user.User, authorID string) bool {
	return actor.ID == authorID || actor.IsAdmin()
}

func (svc *service) Create(ctx context.Context, author user.User, nb NewBlog) (Blog, error) {
	now := time.Now().UTC()
	return svc.repo.CreateBlog(ctx, Blog{
		AuthorID:  author.ID,
		Title:     nb.Title,
		Content:   nb.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Blog, error) {
	blogs, err := svc.repo.QueryBlogs(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying blogs")
	}
	return svc.withCounts(ctx, blogs)
}

func (svc *service) GetByID(ctx context.Context, id string) (Blog, error) {
	b, err := svc.repo.GetBlog(ctx, id)
	if err != nil {
		return Blog{}, err
	}
	blogs, err := svc.withCounts(ctx, []Blog{b})
	if err != nil {
		return Blog{}, err
	}
	return blogs[0], nil
}

func (svc *service) withCounts(ctx context.Context, blogs []Blog) ([]Blog, error) {
	if len(blogs) == 0 {
		return []Blog{}, nil
	}
	ids := make([]string, 0, len(blogs))
	for _, b := range blogs {
		ids = append(ids, b.ID)
	}
	likes, err := svc.repo.CountLikes(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "counting likes")
	}
	comments, err := svc.repo.CountComments(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "counting comments")
	}
	for i := range blogs {
		blogs[i].LikeCount = likes[blogs[i].ID]
		blogs[i].CommentCount = comments[blogs[i].ID]
	}
	return blogs, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, ub UpdateBlog) (Blog, error) {
	b, err := svc.repo.GetBlog(ctx, id)
	if err != nil {
		return Blog{}, err
	}
	if !canEdit(actor, b.AuthorID) {
		return Blog{}, errNotAuthor
	}
	b.Title = ub.Title
	b.Content = ub.Content
	b.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateBlog(ctx, b); err != nil {
		return Blog{}, errors.Wrap(err, "updating blog")
	}
	return svc.GetByID(ctx, id)
}

func (svc *service) SetImage(ctx context.Context, actor user.User, id string, f core.UploadedFile) (Blog, error) {
	b, err := svc.repo.GetBlog(ctx, id)
	if err != nil {
		return Blog{}, err
	}
	if !canEdit(actor, b.AuthorID) {
		return Blog{}, errNotAuthor
	}

	stored, err := svc.media.SaveImage(ctx, "blogs", f)
	if err != nil {
		return Blog{}, err
	}
	oldImage := b.ImagePath
	b.Image = stored.URL
	b.ImagePath = stored.Path
	b.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateBlog(ctx, b); err != nil {
		_ = svc.media.Remove(stored.Path)
		return Blog{}, errors.Wrap(err, "updating blog")
	}
	if oldImage != "" {
		_ = svc.media.Remove(oldImage)
	}
	return svc.GetByID(ctx, id)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	b, err := svc.repo.GetBlog(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(actor, b.AuthorID) {
		return errNotAuthor
	}
	if err := svc.repo.DeleteBlog(ctx, id); err != nil {
		return errors.Wrap(err, "deleting blog")
	}
	if b.ImagePath != "" {
		_ = svc.media.Remove(b.ImagePath)
	}
	return nil
}

func (svc *service) Comment(ctx context.Context, author user.User, blogID string, nc NewComment) (Comment, error) {
	b, err := svc.repo.GetBlog(ctx, blogID)
	if err != nil {
		return Comment{}, err
	}
	c, err := svc.repo.CreateComment(ctx, Comment{
		BlogID:    b.ID,
		AuthorID:  author.ID,
		Content:   nc.Content,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Comment{}, errors.Wrap(err, "creating comment")
	}

	if b.AuthorID != author.ID {
		err = svc.notifyAuthor(ctx, core.EventBlogCommented, b, core.Notice{
			Title: "New comment",
			Body:  fmt.Sprintf("%s commented on %q.", author.Name, b.Title),
			Data:  map[string]interface{}{"blogId": b.ID, "commentId": c.ID},
		})
	}
	return c, err
}

func (svc *service) Comments(ctx context.Context, blogID string) ([]Comment, error) {
	if _, err := svc.repo.GetBlog(ctx, blogID); err != nil {
		return nil, err
	}
	return svc.repo.QueryComments(ctx, blogID)
}

func (svc *service) DeleteComment(ctx context.Context, actor user.User, commentID string) error {
	c, err := svc.repo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !canEdit(actor, c.AuthorID) {
		return errNotAuthor
	}
	return errors.Wrap(svc.repo.DeleteComment(ctx, commentID), "deleting comment")
}

func (svc *service) Like(ctx context.Context, usr user.User, blogID string) (LikeResult, error) {
	b, err := svc.repo.GetBlog(ctx, blogID)
	if err != nil {
		return LikeResult{}, err
	}
	added, err := svc.repo.AddLike(ctx, Like{BlogID: b.ID, UserID: usr.ID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return LikeResult{}, errors.Wrap(err, "adding like")
	}
	if added && b.AuthorID != usr.ID {
		err = svc.notifyAuthor(ctx, core.EventBlogLiked, b, core.Notice{
			Title: "New like",
			Body:  fmt.Sprintf("%s liked %q.", usr.Name, b.Title),
			Data:  map[string]interface{}{"blogId": b.ID},
		})
		if err != nil {
			return LikeResult{}, err
		}
	}
	return svc.likeResult(ctx, b.ID, true)
}

func (svc *service) Unlike(ctx context.Context, usr user.User, blogID string) (LikeResult, error) {
	b, err := svc.repo.GetBlog(ctx, blogID)
	if err != nil {
		return LikeResult{}, err
	}
	if _, err := svc.repo.RemoveLike(ctx, b.ID, usr.ID); err != nil {
		return LikeResult{}, errors.Wrap(err, "removing like")
	}
	return svc.likeResult(ctx, b.ID, false)
}

func (svc *service) likeResult(ctx context.Context, blogID string, liked bool) (LikeResult, error) {
	counts, err := svc.repo.CountLikes(ctx, []string{blogID})
	if err != nil {
		return LikeResult{}, errors.Wrap(err, "counting likes")
	}
	return LikeResult{Liked: liked, LikeCount: counts[blogID]}, nil
}

func (svc *service) notifyAuthor(ctx context.Context, kind string, b Blog, notice core.Notice) error {
	evt, err := core.NewEvent(kind, []string{b.AuthorID}, notice)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.events.Publish(ctx, []core.Event{evt}), "publishing events")
}
