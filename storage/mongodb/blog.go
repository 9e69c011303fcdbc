package mongodb

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/mwalimu/core/blog"
)

type blogRepository struct {
	blogs    *mongo.Collection
	comments *mongo.Collection
	likes    *mongo.Collection
}

var _ blog.Repository = (*blogRepository)(nil)

func NewBlogRepository(db *DB) blog.Repository {
	return &blogRepository{
		blogs:    db.collection(blogsCollection),
		comments: db.collection(commentsCollection),
		likes:    db.collection(likesCollection),
	}
}

func (repo *blogRepository) CreateBlog(ctx context.Context, b blog.Blog) (blog.Blog, error) {
	b.ID = newID()
	if _, err := repo.blogs.InsertOne(ctx, b); err != nil {
		return blog.Blog{}, errors.Wrap(err, "inserting blog")
	}
	return b, nil
}

func (repo *blogRepository) QueryBlogs(ctx context.Context, filter *blog.QueryFilter) ([]blog.Blog, error) {
	query := bson.M{}
	if filter != nil {
		if filter.AuthorID != "" {
			query["authorId"] = filter.AuthorID
		}
		if filter.Search != "" {
			pattern := regexp.QuoteMeta(filter.Search)
			query["$or"] = bson.A{
				bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
				bson.M{"content": bson.M{"$regex": pattern, "$options": "i"}},
			}
		}
	}

	cursor, err := repo.blogs.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying blogs")
	}
	blogs := make([]blog.Blog, 0)
	if err = cursor.All(ctx, &blogs); err != nil {
		return nil, errors.Wrap(err, "decoding blogs")
	}
	return blogs, nil
}

func (repo *blogRepository) GetBlog(ctx context.Context, id string) (blog.Blog, error) {
	var b blog.Blog
	if err := repo.blogs.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return blog.Blog{}, trapNoDocsErr(err, blog.ErrNotFound, "finding blog")
	}
	return b, nil
}

func (repo *blogRepository) UpdateBlog(ctx context.Context, b blog.Blog) (blog.Blog, error) {
	res, err := repo.blogs.ReplaceOne(ctx, bson.M{"_id": b.ID}, b)
	if err != nil {
		return blog.Blog{}, errors.Wrap(err, "updating blog")
	}
	if res.MatchedCount == 0 {
		return blog.Blog{}, blog.ErrNotFound
	}
	return b, nil
}

func (repo *blogRepository) DeleteBlog(ctx context.Context, id string) error {
	res, err := repo.blogs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "deleting blog")
	}
	if res.DeletedCount == 0 {
		return blog.ErrNotFound
	}
	if _, err = repo.comments.DeleteMany(ctx, bson.M{"blogId": id}); err != nil {
		return errors.Wrap(err, "deleting blog comments")
	}
	if _, err = repo.likes.DeleteMany(ctx, bson.M{"blogId": id}); err != nil {
		return errors.Wrap(err, "deleting blog likes")
	}
	return nil
}

func (repo *blogRepository) CreateComment(ctx context.Context, c blog.Comment) (blog.Comment, error) {
	c.ID = newID()
	if _, err := repo.comments.InsertOne(ctx, c); err != nil {
		return blog.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return c, nil
}

func (repo *blogRepository) QueryComments(ctx context.Context, blogID string) ([]blog.Comment, error) {
	cursor, err := repo.comments.Find(ctx, bson.M{"blogId": blogID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]blog.Comment, 0)
	if err = cursor.All(ctx, &comments); err != nil {
		return nil, errors.Wrap(err, "decoding comments")
	}
	return comments, nil
}

func (repo *blogRepository) GetComment(ctx context.Context, id string) (blog.Comment, error) {
	var c blog.Comment
	if err := repo.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return blog.Comment{}, trapNoDocsErr(err, blog.ErrCommentNotFound, "finding comment")
	}
	return c, nil
}

func (repo *blogRepository) DeleteComment(ctx context.Context, id string) error {
	res, err := repo.comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	if res.DeletedCount == 0 {
		return blog.ErrCommentNotFound
	}
	return nil
}

// AddLike relies on the unique (blogId, userId) index to keep likes idempotent.
func (repo *blogRepository) AddLike(ctx context.Context, l blog.Like) (bool, error) {
	l.ID = newID()
	if _, err := repo.likes.InsertOne(ctx, l); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "inserting like")
	}
	return true, nil
}

func (repo *blogRepository) RemoveLike(ctx context.Context, blogID, userID string) (bool, error) {
	res, err := repo.likes.DeleteOne(ctx, bson.M{"blogId": blogID, "userId": userID})
	if err != nil {
		return false, errors.Wrap(err, "deleting like")
	}
	return res.DeletedCount > 0, nil
}

func (repo *blogRepository) CountLikes(ctx context.Context, blogIDs []string) (map[string]int, error) {
	counts, err := countBy(ctx, repo.likes, "blogId", blogIDs)
	return counts, errors.Wrap(err, "counting likes")
}

func (repo *blogRepository) CountComments(ctx context.Context, blogIDs []string) (map[string]int, error) {
	counts, err := countBy(ctx, repo.comments, "blogId", blogIDs)
	return counts, errors.Wrap(err, "counting comments")
}
