package posts

import (
	"strconv"

	"github.com/nastyaeremenko/yatube/internal/paginator"
)

// View models mirror what the page templates consume.

type listView struct {
	Page      paginator.Page[Post] `json:"page"`
	Paginator paginator.Paginator  `json:"paginator"`
	// StartIndex numbers the first post on the page, 0 when empty.
	StartIndex int `json:"start_index"`
}

func newListView(pg paginator.Page[Post]) listView {
	return listView{
		Page:       pg,
		Paginator:  paginator.New(pg.Count, pg.PerPage),
		StartIndex: pg.StartIndex(),
	}
}

type groupView struct {
	Group Group `json:"group"`
	listView
}

type profileView struct {
	Author Author `json:"author"`
	listView
	AuthorStats
}

type commentFormView struct {
	Text string `json:"text"`
}

type postView struct {
	Post     Post            `json:"post"`
	Author   Author          `json:"author"`
	Comments []Comment       `json:"comments"`
	Form     commentFormView `json:"form"`
	AuthorStats
}

type postFormView struct {
	Text  string `json:"text"`
	Group string `json:"group"`
}

type editView struct {
	Form   postFormView        `json:"form"`
	Groups []Group             `json:"groups"`
	Errors map[string][]string `json:"errors,omitempty"`
	Post   *Post               `json:"post,omitempty"`
	IsEdit bool                `json:"is_edit"`
}

func formFromPost(p Post) postFormView {
	f := postFormView{Text: p.Text}
	if p.Group != nil {
		f.Group = strconv.FormatInt(p.Group.ID, 10)
	}
	return f
}
