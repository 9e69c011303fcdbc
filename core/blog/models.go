package blog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
)

type (
	Blog struct {
		ID           string    `json:"id" bson:"_id"`
		AuthorID     string    `json:"authorId" bson:"authorId"`
		Title        string    `json:"title" bson:"title"`
		Content      string    `json:"content" bson:"content"`
		Image        string    `json:"image,omitempty" bson:"image,omitempty"`
		ImagePath    string    `json:"-" bson:"imagePath,omitempty"`
		CreatedAt    time.Time `json:"createdAt" bson:"createdAt"` // UTC
		UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"` // UTC
		LikeCount    int       `json:"likeCount" bson:"-"`
		CommentCount int       `json:"commentCount" bson:"-"`
	}

	Comment struct {
		ID        string    `json:"id" bson:"_id"`
		BlogID    string    `json:"blogId" bson:"blogId"`
		AuthorID  string    `json:"authorId" bson:"authorId"`
		Content   string    `json:"content" bson:"content"`
		CreatedAt time.Time `json:"createdAt" bson:"createdAt"` // UTC
	}

	Like struct {
		ID        string    `json:"id" bson:"_id"`
		BlogID    string    `json:"blogId" bson:"blogId"`
		UserID    string    `json:"userId" bson:"userId"`
		CreatedAt time.Time `json:"createdAt" bson:"createdAt"` // UTC
	}
)

type (
	NewBlog struct {
		Title   string `json:"title" validate:"required,max=200"`
		Content string `json:"content" validate:"required"`
	}

	// UpdateBlog replaces the title & content of a Blog.
	UpdateBlog NewBlog

	NewComment struct {
		Content string `json:"content" validate:"required,max=2000"`
	}

	LikeResult struct {
		Liked     bool `json:"liked"`
		LikeCount int  `json:"likeCount"`
	}
)

func (nb *NewBlog) Validate(validate *validator.Validate) error {
	nb.Title = core.CleanString(nb.Title)
	nb.Content = core.CleanString(nb.Content)
	return validate.Struct(nb)
}

func (ub *UpdateBlog) Validate(validate *validator.Validate) error {
	return (*NewBlog)(ub).Validate(validate)
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

type QueryFilter struct {
	AuthorID string `query:"authorId"`
	Search   string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.AuthorID = core.CleanString(qf.AuthorID)
	qf.Search = core.CleanString(qf.Search)
}
