package posts

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nastyaeremenko/yatube/internal/db"
	"github.com/nastyaeremenko/yatube/internal/monitoring"
	"github.com/nastyaeremenko/yatube/internal/paginator"
	"github.com/nastyaeremenko/yatube/internal/storage"
	"github.com/nastyaeremenko/yatube/internal/stream"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

// ImageStore saves uploaded post images.
type ImageStore interface {
	SaveImage(ctx context.Context, userID string, fh *multipart.FileHeader) (storage.Image, error)
	Discard(ctx context.Context, img storage.Image) error
	DiscardURL(ctx context.Context, url string) error
}

// Broadcaster pushes new posts to live subscribers.
type Broadcaster interface {
	Broadcast(channel string, payload []byte)
}

type Service struct {
	db       db.Querier
	groups   GroupRepository
	posts    PostRepository
	comments CommentRepository
	follows  FollowRepository
	users    UserRepository

	images  ImageStore
	events  Broadcaster
	metrics *monitoring.Metrics
}

type Option func(*Service)

func WithImages(images ImageStore) Option { return func(s *Service) { s.images = images } }

func WithBroadcaster(b Broadcaster) Option { return func(s *Service) { s.events = b } }

func WithMetrics(m *monitoring.Metrics) Option { return func(s *Service) { s.metrics = m } }

func NewService(q db.Querier, opts ...Option) *Service {
	s := &Service{
		db:       q,
		groups:   NewGroupStore(q),
		posts:    NewPostStore(q),
		comments: NewCommentStore(q),
		follows:  NewFollowStore(q),
		users:    NewUserStore(q),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPosts returns one page of the filtered listing, newest first. Page
// numbers outside the valid range are clamped.
func (s *Service) ListPosts(ctx context.Context, f Filter, page int) (paginator.Page[Post], error) {
	count, err := s.posts.Count(ctx, f)
	if err != nil {
		return paginator.Page[Post]{}, err
	}
	p := paginator.New(count, paginator.PerPage)
	number := p.Number(page)
	if count == 0 {
		return paginator.NewPage[Post](p, number, nil), nil
	}

	limit, offset := p.Window(number)
	items, err := s.posts.List(ctx, f, limit, offset)
	if err != nil {
		return paginator.Page[Post]{}, err
	}
	return paginator.NewPage(p, number, items), nil
}

func (s *Service) GroupPosts(ctx context.Context, slug string, page int) (Group, paginator.Page[Post], error) {
	g, err := s.groups.BySlug(ctx, slug)
	if err != nil {
		return Group{}, paginator.Page[Post]{}, err
	}
	pg, err := s.ListPosts(ctx, InGroup(g.ID), page)
	return g, pg, err
}

func (s *Service) Groups(ctx context.Context) ([]Group, error) {
	return s.groups.List(ctx)
}

func (s *Service) GetPost(ctx context.Context, username string, postID int64) (Post, error) {
	return s.posts.Get(ctx, username, postID)
}

// Stats counts the author's posts and follow edges; Following reports
// whether viewerID follows the author and is false for anonymous viewers.
func (s *Service) Stats(ctx context.Context, authorID, viewerID string) (AuthorStats, error) {
	var st AuthorStats
	var err error
	if st.PostsCount, err = s.posts.Count(ctx, ByAuthor(authorID)); err != nil {
		return AuthorStats{}, err
	}
	if st.FollowersCount, err = s.follows.CountFollowers(ctx, authorID); err != nil {
		return AuthorStats{}, err
	}
	if st.FollowingCount, err = s.follows.CountFollowing(ctx, authorID); err != nil {
		return AuthorStats{}, err
	}
	if viewerID != "" {
		if st.Following, err = s.follows.Exists(ctx, viewerID, authorID); err != nil {
			return AuthorStats{}, err
		}
	}
	return st, nil
}

type Profile struct {
	Author Author
	Page   paginator.Page[Post]
	Stats  AuthorStats
}

func (s *Service) Profile(ctx context.Context, username, viewerID string, page int) (Profile, error) {
	author, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return Profile{}, err
	}
	pg, err := s.ListPosts(ctx, ByAuthor(author.ID), page)
	if err != nil {
		return Profile{}, err
	}
	st, err := s.Stats(ctx, author.ID, viewerID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Author: author, Page: pg, Stats: st}, nil
}

type PostDetail struct {
	Post     Post
	Comments []Comment
	Stats    AuthorStats
}

func (s *Service) PostDetail(ctx context.Context, username string, postID int64, viewerID string) (PostDetail, error) {
	post, err := s.posts.Get(ctx, username, postID)
	if err != nil {
		return PostDetail{}, err
	}
	comments, err := s.Comments(ctx, post.ID)
	if err != nil {
		return PostDetail{}, err
	}
	st, err := s.Stats(ctx, post.Author.ID, viewerID)
	if err != nil {
		return PostDetail{}, err
	}
	return PostDetail{Post: post, Comments: comments, Stats: st}, nil
}

// Comments lists a post's comments, newest first.
func (s *Service) Comments(ctx context.Context, postID int64) ([]Comment, error) {
	return s.comments.ListByPost(ctx, postID)
}

// CreatePost validates form and stores a post authored by author. pub_date
// comes from the database clock.
func (s *Service) CreatePost(ctx context.Context, author Author, form PostForm) (Post, error) {
	post := Post{Text: strings.TrimSpace(form.Text), Author: author}
	group, err := s.validatePost(ctx, form)
	if err != nil {
		return Post{}, err
	}
	post.Group = group

	img, err := s.saveImage(ctx, author.ID, form.Image)
	if err != nil {
		return Post{}, err
	}
	post.Image = img.URL

	created, err := s.posts.Create(ctx, post)
	if err != nil {
		s.discardImage(ctx, img)
		return Post{}, err
	}

	s.metrics.PostCreated()
	s.publish(created)
	return created, nil
}

// EditPost applies form to the post if callerID is its author. The returned
// post is the stored one before the edit, for re-rendering on failure.
func (s *Service) EditPost(ctx context.Context, username string, postID int64, callerID string, form PostForm) (Post, error) {
	post, err := s.posts.Get(ctx, username, postID)
	if err != nil {
		return Post{}, err
	}
	if post.Author.ID != callerID {
		return post, ErrForbidden
	}

	group, err := s.validatePost(ctx, form)
	if err != nil {
		return post, err
	}
	img, err := s.saveImage(ctx, callerID, form.Image)
	if err != nil {
		return post, err
	}

	updated := post
	updated.Text = strings.TrimSpace(form.Text)
	updated.Group = group
	updated.Image = img.URL

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		store := NewPostStore(tx)
		authorID, err := store.LockAuthor(ctx, post.ID)
		if err != nil {
			return err
		}
		if authorID != callerID {
			return ErrForbidden
		}
		return store.Update(ctx, updated)
	})
	if err != nil {
		s.discardImage(ctx, img)
		return post, err
	}

	if updated.Image == "" {
		updated.Image = post.Image
	} else if post.Image != "" && post.Image != updated.Image {
		if err := s.images.DiscardURL(ctx, post.Image); err != nil {
			log.WithError(err).WithField("url", post.Image).Warn("failed to discard replaced image")
		}
	}
	return updated, nil
}

func (s *Service) AddComment(ctx context.Context, username string, postID int64, author Author, text string) (Comment, error) {
	post, err := s.posts.Get(ctx, username, postID)
	if err != nil {
		return Comment{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		verr := &ValidationError{}
		verr.add("text", msgRequired)
		return Comment{}, verr
	}
	return s.comments.Create(ctx, Comment{PostID: post.ID, Author: author, Text: text})
}

// Follow makes followerID follow the author named username. Repeating it
// changes nothing and following yourself is ignored.
func (s *Service) Follow(ctx context.Context, followerID, username string) (Author, error) {
	author, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return Author{}, err
	}
	if author.ID == followerID {
		return author, nil
	}
	return author, s.follows.Create(ctx, followerID, author.ID)
}

// Unfollow removes the edge if it exists.
func (s *Service) Unfollow(ctx context.Context, followerID, username string) (Author, error) {
	author, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return Author{}, err
	}
	return author, s.follows.Delete(ctx, followerID, author.ID)
}

func (s *Service) FollowedFeed(ctx context.Context, userID string, page int) (paginator.Page[Post], error) {
	return s.ListPosts(ctx, FollowedBy(userID), page)
}

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

func (s *Service) CreateGroup(ctx context.Context, form GroupForm) (Group, error) {
	g := Group{
		Title:       strings.TrimSpace(form.Title),
		Slug:        strings.TrimSpace(form.Slug),
		Description: strings.TrimSpace(form.Description),
	}

	verr := &ValidationError{}
	switch {
	case g.Title == "":
		verr.add("title", msgRequired)
	case utf8.RuneCountInString(g.Title) > 200:
		verr.add("title", "Ensure this value has at most 200 characters.")
	}
	switch {
	case g.Slug == "":
		verr.add("slug", msgRequired)
	case len(g.Slug) > 50:
		verr.add("slug", "Ensure this value has at most 50 characters.")
	case !slugPattern.MatchString(g.Slug):
		verr.add("slug", "Enter a valid slug consisting of letters, numbers, underscores or hyphens.")
	}
	if err := verr.errOrNil(); err != nil {
		return Group{}, err
	}

	created, err := s.groups.Create(ctx, g)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			verr.add("slug", "Group with this Slug already exists.")
			return Group{}, verr
		}
		return Group{}, err
	}
	return created, nil
}

// DeleteGroup removes the group; its posts stay with no group.
func (s *Service) DeleteGroup(ctx context.Context, slug string) error {
	return s.groups.DeleteBySlug(ctx, slug)
}

func (s *Service) validatePost(ctx context.Context, form PostForm) (*Group, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(form.Text) == "" {
		verr.add("text", msgRequired)
	}

	var group *Group
	if raw := strings.TrimSpace(form.Group); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			verr.add("group", msgInvalidGroup)
		} else {
			g, err := s.groups.ByID(ctx, id)
			switch {
			case errors.Is(err, ErrNotFound):
				verr.add("group", msgInvalidGroup)
			case err != nil:
				return nil, err
			default:
				group = &g
			}
		}
	}
	if form.Image != nil && s.images == nil {
		verr.add("image", "Image uploads are disabled.")
	}
	return group, verr.errOrNil()
}

func (s *Service) saveImage(ctx context.Context, userID string, fh *multipart.FileHeader) (storage.Image, error) {
	if fh == nil || s.images == nil {
		return storage.Image{}, nil
	}
	img, err := s.images.SaveImage(ctx, userID, fh)
	if errors.Is(err, storage.ErrInvalidImage) {
		verr := &ValidationError{}
		verr.add("image", msgInvalidImage)
		return storage.Image{}, verr
	}
	return img, err
}

func (s *Service) discardImage(ctx context.Context, img storage.Image) {
	if img.Key == "" {
		return
	}
	if err := s.images.Discard(ctx, img); err != nil {
		log.WithError(err).WithField("key", img.Key).Warn("failed to discard image")
	}
}

func (s *Service) publish(p Post) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		log.WithError(err).Error("encode post event")
		return
	}
	s.events.Broadcast(stream.IndexChannel, payload)
	s.events.Broadcast(stream.AuthorChannel(p.Author.Username), payload)
	if p.Group != nil {
		s.events.Broadcast(stream.GroupChannel(p.Group.Slug), payload)
	}
}
