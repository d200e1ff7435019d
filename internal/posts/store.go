package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/nastyaeremenko/yatube/internal/db"

	"github.com/jackc/pgx/v5"
)

const postSelect = `
	SELECT p.id, p.text, p.pub_date, p.author_id, u.username, u.full_name,
	       COALESCE(p.group_id, 0), COALESCE(g.title, ''), COALESCE(g.slug, ''), COALESCE(p.image, '')
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN post_groups g ON g.id = p.group_id`

// notFound maps a missing row to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type GroupStore struct{ db db.Executor }

func NewGroupStore(q db.Executor) *GroupStore { return &GroupStore{db: q} }

func (s *GroupStore) ByID(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := s.db.QueryRow(ctx, `
		SELECT id, title, slug, description FROM post_groups WHERE id = $1
	`, id).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	return g, notFound(err)
}

func (s *GroupStore) BySlug(ctx context.Context, slug string) (Group, error) {
	var g Group
	err := s.db.QueryRow(ctx, `
		SELECT id, title, slug, description FROM post_groups WHERE slug = $1
	`, slug).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	return g, notFound(err)
}

func (s *GroupStore) List(ctx context.Context) ([]Group, error) {
	rows, err := s.db.Query(ctx, `SELECT id, title, slug, description FROM post_groups ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []Group{}
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *GroupStore) Create(ctx context.Context, g Group) (Group, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO post_groups (title, slug, description)
		VALUES ($1,$2,$3)
		RETURNING id
	`, g.Title, g.Slug, g.Description).Scan(&g.ID)
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

func (s *GroupStore) DeleteBySlug(ctx context.Context, slug string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM post_groups WHERE slug = $1`, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type PostStore struct{ db db.Executor }

func NewPostStore(q db.Executor) *PostStore { return &PostStore{db: q} }

func (s *PostStore) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&n)
	return n, err
}

func (s *PostStore) List(ctx context.Context, f Filter, limit, offset int) ([]Post, error) {
	where, args := f.where()
	sql := fmt.Sprintf("%s%s ORDER BY p.pub_date DESC, p.id DESC LIMIT $%d OFFSET $%d",
		postSelect, where, len(args)+1, len(args)+2)
	rows, err := s.db.Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *PostStore) Get(ctx context.Context, username string, id int64) (Post, error) {
	row := s.db.QueryRow(ctx, postSelect+` WHERE p.id = $1 AND u.username = $2`, id, username)
	p, err := scanPost(row)
	return p, notFound(err)
}

func (s *PostStore) Create(ctx context.Context, p Post) (Post, error) {
	var groupID int64
	if p.Group != nil {
		groupID = p.Group.ID
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO posts (text, author_id, group_id, image)
		VALUES ($1, $2, NULLIF($3::bigint, 0), NULLIF($4::text, ''))
		RETURNING id, pub_date
	`, p.Text, p.Author.ID, groupID, p.Image).Scan(&p.ID, &p.PubDate)
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

func (s *PostStore) LockAuthor(ctx context.Context, id int64) (string, error) {
	var authorID string
	err := s.db.QueryRow(ctx, `SELECT author_id FROM posts WHERE id = $1 FOR UPDATE`, id).Scan(&authorID)
	return authorID, notFound(err)
}

// Update rewrites text and group. An empty Image keeps the stored one.
func (s *PostStore) Update(ctx context.Context, p Post) error {
	var groupID int64
	if p.Group != nil {
		groupID = p.Group.ID
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE posts
		SET text = $2, group_id = NULLIF($3::bigint, 0), image = COALESCE(NULLIF($4::text, ''), image)
		WHERE id = $1
	`, p.ID, p.Text, groupID, p.Image)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPost(row pgx.Row) (Post, error) {
	var (
		p       Post
		groupID int64
		title   string
		slug    string
	)
	err := row.Scan(&p.ID, &p.Text, &p.PubDate, &p.Author.ID, &p.Author.Username, &p.Author.FullName,
		&groupID, &title, &slug, &p.Image)
	if err != nil {
		return Post{}, err
	}
	if groupID != 0 {
		p.Group = &Group{ID: groupID, Title: title, Slug: slug}
	}
	return p, nil
}

type CommentStore struct{ db db.Executor }

func NewCommentStore(q db.Executor) *CommentStore { return &CommentStore{db: q} }

func (s *CommentStore) ListByPost(ctx context.Context, postID int64) ([]Comment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.post_id, c.author_id, u.username, u.full_name, c.text, c.created
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created DESC, c.id DESC
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.Author.ID, &c.Author.Username, &c.Author.FullName, &c.Text, &c.Created); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *CommentStore) Create(ctx context.Context, c Comment) (Comment, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO comments (post_id, author_id, text)
		VALUES ($1,$2,$3)
		RETURNING id, created
	`, c.PostID, c.Author.ID, c.Text).Scan(&c.ID, &c.Created)
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

type FollowStore struct{ db db.Executor }

func NewFollowStore(q db.Executor) *FollowStore { return &FollowStore{db: q} }

func (s *FollowStore) Create(ctx context.Context, userID, authorID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO follows (user_id, author_id)
		VALUES ($1,$2)
		ON CONFLICT (user_id, author_id) DO NOTHING
	`, userID, authorID)
	return err
}

func (s *FollowStore) Delete(ctx context.Context, userID, authorID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM follows WHERE user_id = $1 AND author_id = $2`, userID, authorID)
	return err
}

func (s *FollowStore) Exists(ctx context.Context, userID, authorID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM follows WHERE user_id = $1 AND author_id = $2)
	`, userID, authorID).Scan(&ok)
	return ok, err
}

func (s *FollowStore) CountFollowers(ctx context.Context, authorID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM follows WHERE author_id = $1`, authorID).Scan(&n)
	return n, err
}

func (s *FollowStore) CountFollowing(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM follows WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

type UserStore struct{ db db.Executor }

func NewUserStore(q db.Executor) *UserStore { return &UserStore{db: q} }

func (s *UserStore) ByUsername(ctx context.Context, username string) (Author, error) {
	var a Author
	err := s.db.QueryRow(ctx, `
		SELECT id, username, full_name FROM users WHERE username = $1
	`, username).Scan(&a.ID, &a.Username, &a.FullName)
	return a, notFound(err)
}
