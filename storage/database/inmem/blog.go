package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/mwalimu/core/blog"
)

type blogRepository struct {
	db *DB
}

var _ blog.Repository = (*blogRepository)(nil)

func NewBlogRepository(db *DB) blog.Repository {
	return &blogRepository{db: db}
}

func (repo *blogRepository) CreateBlog(_ context.Context, b blog.Blog) (blog.Blog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	b.ID = newID()
	repo.db.blogs[b.ID] = &b
	return b, nil
}

func (repo *blogRepository) QueryBlogs(_ context.Context, filter *blog.QueryFilter) ([]blog.Blog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	blogs := make([]blog.Blog, 0)
	for _, b := range repo.db.blogs {
		if filter != nil {
			if filter.AuthorID != "" && b.AuthorID != filter.AuthorID {
				continue
			}
			if s := strings.ToLower(filter.Search); s != "" &&
				!strings.Contains(strings.ToLower(b.Title), s) && !strings.Contains(strings.ToLower(b.Content), s) {
				continue
			}
		}
		blogs = append(blogs, *b)
	}
	sort.Slice(blogs, func(i, j int) bool { return blogs[i].CreatedAt.After(blogs[j].CreatedAt) })
	return blogs, nil
}

func (repo *blogRepository) GetBlog(_ context.Context, id string) (blog.Blog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if b, ok := repo.db.blogs[id]; ok {
		return *b, nil
	}
	return blog.Blog{}, blog.ErrNotFound
}

func (repo *blogRepository) UpdateBlog(_ context.Context, b blog.Blog) (blog.Blog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.blogs[b.ID]; !ok {
		return blog.Blog{}, blog.ErrNotFound
	}
	repo.db.blogs[b.ID] = &b
	return b, nil
}

func (repo *blogRepository) DeleteBlog(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.blogs[id]; !ok {
		return blog.ErrNotFound
	}
	delete(repo.db.blogs, id)
	for cid, c := range repo.db.comments {
		if c.BlogID == id {
			delete(repo.db.comments, cid)
		}
	}
	for lid, l := range repo.db.likes {
		if l.BlogID == id {
			delete(repo.db.likes, lid)
		}
	}
	return nil
}

func (repo *blogRepository) CreateComment(_ context.Context, c blog.Comment) (blog.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = newID()
	repo.db.comments[c.ID] = &c
	return c, nil
}

func (repo *blogRepository) QueryComments(_ context.Context, blogID string) ([]blog.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	comments := make([]blog.Comment, 0)
	for _, c := range repo.db.comments {
		if c.BlogID == blogID {
			comments = append(comments, *c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (repo *blogRepository) GetComment(_ context.Context, id string) (blog.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.comments[id]; ok {
		return *c, nil
	}
	return blog.Comment{}, blog.ErrCommentNotFound
}

func (repo *blogRepository) DeleteComment(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.comments[id]; !ok {
		return blog.ErrCommentNotFound
	}
	delete(repo.db.comments, id)
	return nil
}

func (repo *blogRepository) AddLike(_ context.Context, l blog.Like) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.likes {
		if other.BlogID == l.BlogID && other.UserID == l.UserID {
			return false, nil
		}
	}
	l.ID = newID()
	repo.db.likes[l.ID] = &l
	return true, nil
}

func (repo *blogRepository) RemoveLike(_ context.Context, blogID, userID string) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, l := range repo.db.likes {
		if l.BlogID == blogID && l.UserID == userID {
			delete(repo.db.likes, id)
			return true, nil
		}
	}
	return false, nil
}

func (repo *blogRepository) CountLikes(_ context.Context, blogIDs []string) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[string]int, len(blogIDs))
	for _, l := range repo.db.likes {
		if contains(blogIDs, l.BlogID) {
			counts[l.BlogID]++
		}
	}
	return counts, nil
}

func (repo *blogRepository) CountComments(_ context.Context, blogIDs []string) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[string]int, len(blogIDs))
	for _, c := range repo.db.comments {
		if contains(blogIDs, c.BlogID) {
			counts[c.BlogID]++
		}
	}
	return counts, nil
}
