package posts

import (
	"mime/multipart"
	"time"
)

type Group struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type Post struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text"`
	PubDate time.Time `json:"pub_date"`
	Author  Author    `json:"author"`
	Group   *Group    `json:"group"`
	Image   string    `json:"image,omitempty"`
}

type Comment struct {
	ID      int64     `json:"id"`
	PostID  int64     `json:"post_id"`
	Author  Author    `json:"author"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
}

// PostForm is the submitted post data before validation. Group holds the raw
// group id; empty means no group.
type PostForm struct {
	Text  string                `json:"text"`
	Group string                `json:"group"`
	Image *multipart.FileHeader `json:"-"`
}

type GroupForm struct {
	Title       string `json:"title" form:"title"`
	Slug        string `json:"slug" form:"slug"`
	Description string `json:"description" form:"description"`
}

// AuthorStats are the counters shown next to an author.
type AuthorStats struct {
	PostsCount     int  `json:"posts_count"`
	FollowersCount int  `json:"followers_count"`
	FollowingCount int  `json:"following_count"`
	Following      bool `json:"following"`
}

type filterKind int

const (
	filterAll filterKind = iota
	filterGroup
	filterAuthor
	filterFollowedBy
)

// Filter selects which posts a listing contains.
type Filter struct {
	kind     filterKind
	groupID  int64
	authorID string
	userID   string
}

func AllPosts() Filter { return Filter{kind: filterAll} }

func InGroup(groupID int64) Filter { return Filter{kind: filterGroup, groupID: groupID} }

func ByAuthor(authorID string) Filter { return Filter{kind: filterAuthor, authorID: authorID} }

// FollowedBy selects posts by every author userID follows at query time.
func FollowedBy(userID string) Filter { return Filter{kind: filterFollowedBy, userID: userID} }

func (f Filter) where() (string, []any) {
	switch f.kind {
	case filterGroup:
		return " WHERE p.group_id = $1", []any{f.groupID}
	case filterAuthor:
		return " WHERE p.author_id = $1", []any{f.authorID}
	case filterFollowedBy:
		return " WHERE p.author_id IN (SELECT author_id FROM follows WHERE user_id = $1)", []any{f.userID}
	default:
		return "", nil
	}
}
