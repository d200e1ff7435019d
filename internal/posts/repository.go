package posts

import "context"

type GroupRepository interface {
	ByID(ctx context.Context, id int64) (Group, error)
	BySlug(ctx context.Context, slug string) (Group, error)
	List(ctx context.Context) ([]Group, error)
	Create(ctx context.Context, g Group) (Group, error)
	DeleteBySlug(ctx context.Context, slug string) error
}

type PostRepository interface {
	Count(ctx context.Context, f Filter) (int, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]Post, error)
	Get(ctx context.Context, username string, id int64) (Post, error)
	Create(ctx context.Context, p Post) (Post, error)
	// LockAuthor locks the post row for the rest of the transaction.
	LockAuthor(ctx context.Context, id int64) (string, error)
	Update(ctx context.Context, p Post) error
}

type CommentRepository interface {
	ListByPost(ctx context.Context, postID int64) ([]Comment, error)
	Create(ctx context.Context, c Comment) (Comment, error)
}

type FollowRepository interface {
	Create(ctx context.Context, userID, authorID string) error
	Delete(ctx context.Context, userID, authorID string) error
	Exists(ctx context.Context, userID, authorID string) (bool, error)
	CountFollowers(ctx context.Context, authorID string) (int, error)
	CountFollowing(ctx context.Context, userID string) (int, error)
}

type UserRepository interface {
	ByUsername(ctx context.Context, username string) (Author, error)
}
