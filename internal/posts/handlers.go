package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nastyaeremenko/yatube/internal/auth"
	"github.com/nastyaeremenko/yatube/internal/cache"
	"github.com/nastyaeremenko/yatube/internal/paginator"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

type handler struct {
	svc      *Service
	cache    cache.Cache
	indexTTL time.Duration
}

// RegisterRoutes mounts the site pages. Fixed paths come before the
// /:username/ catch-alls.
func RegisterRoutes(r fiber.Router, svc *Service, c cache.Cache, indexTTL time.Duration, loginRequired fiber.Handler) {
	h := &handler{svc: svc, cache: c, indexTTL: indexTTL}

	r.Get("/", h.index)
	r.Get("/new/", loginRequired, h.newPostForm)
	r.Post("/new/", loginRequired, h.createPost)
	r.Get("/follow/", loginRequired, h.followIndex)
	r.Get("/group/:slug/", h.groupPosts)

	r.Get("/:username/follow/", loginRequired, h.follow)
	r.Get("/:username/unfollow/", loginRequired, h.unfollow)
	r.Get("/:username/", h.profile)
	r.Get("/:username/:post_id/", h.postView)
	r.Get("/:username/:post_id/edit/", loginRequired, h.editForm)
	r.Post("/:username/:post_id/edit/", loginRequired, h.editPost)
	r.Post("/:username/:post_id/comment/", loginRequired, h.addComment)
}

func (h *handler) index(c *fiber.Ctx) error {
	ctx := c.UserContext()
	number := paginator.ParseNumber(c.Query("page"))

	// entries are stored under the clamped page number only, so
	// out-of-range requests cannot add keys
	if body, ok := h.cached(ctx, indexKey(number)); ok {
		return sendJSON(c, body)
	}

	pg, err := h.svc.ListPosts(ctx, AllPosts(), number)
	if err != nil {
		return err
	}
	body, err := json.Marshal(newListView(pg))
	if err != nil {
		return err
	}
	if h.cache != nil {
		key := indexKey(pg.Number)
		if err := h.cache.Set(ctx, key, body, h.indexTTL); err != nil {
			log.WithError(err).WithField("key", key).Warn("cache set failed")
		}
	}
	return sendJSON(c, body)
}

func indexKey(number int) string {
	return "index_page:" + strconv.Itoa(number)
}

// cached treats cache failures as misses.
func (h *handler) cached(ctx context.Context, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	body, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("cache get failed")
		ok = false
	}
	h.svc.metrics.CacheLookup(ok)
	return body, ok
}

func (h *handler) groupPosts(c *fiber.Ctx) error {
	group, pg, err := h.svc.GroupPosts(c.UserContext(), c.Params("slug"), paginator.ParseNumber(c.Query("page")))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(groupView{Group: group, listView: newListView(pg)})
}

func (h *handler) profile(c *fiber.Ctx) error {
	viewer, _ := auth.CurrentUser(c)
	p, err := h.svc.Profile(c.UserContext(), c.Params("username"), viewer.ID, paginator.ParseNumber(c.Query("page")))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(profileView{Author: p.Author, listView: newListView(p.Page), AuthorStats: p.Stats})
}

func (h *handler) postView(c *fiber.Ctx) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}
	viewer, _ := auth.CurrentUser(c)
	d, err := h.svc.PostDetail(c.UserContext(), c.Params("username"), postID, viewer.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(postView{
		Post:        d.Post,
		Author:      d.Post.Author,
		Comments:    d.Comments,
		AuthorStats: d.Stats,
	})
}

func (h *handler) newPostForm(c *fiber.Ctx) error {
	groups, err := h.svc.Groups(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(editView{Groups: groups})
}

func (h *handler) createPost(c *fiber.Ctx) error {
	form := readPostForm(c)
	_, err := h.svc.CreatePost(c.UserContext(), currentAuthor(c), form)
	var verr *ValidationError
	if errors.As(err, &verr) {
		return h.renderForm(c, editView{Form: postFormView{Text: form.Text, Group: form.Group}, Errors: verr.Fields})
	}
	if err != nil {
		return err
	}
	return c.Redirect("/", fiber.StatusFound)
}

func (h *handler) editForm(c *fiber.Ctx) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}
	username := c.Params("username")
	post, err := h.svc.GetPost(c.UserContext(), username, postID)
	if err != nil {
		return httpError(err)
	}
	if post.Author.ID != currentAuthor(c).ID {
		return c.Redirect(postURL(username, postID), fiber.StatusFound)
	}

	groups, err := h.svc.Groups(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(editView{Form: formFromPost(post), Groups: groups, Post: &post, IsEdit: true})
}

func (h *handler) editPost(c *fiber.Ctx) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}
	username := c.Params("username")
	form := readPostForm(c)

	post, err := h.svc.EditPost(c.UserContext(), username, postID, currentAuthor(c).ID, form)
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrForbidden):
		return c.Redirect(postURL(username, postID), fiber.StatusFound)
	case errors.As(err, &verr):
		return h.renderForm(c, editView{
			Form:   postFormView{Text: form.Text, Group: form.Group},
			Errors: verr.Fields,
			Post:   &post,
			IsEdit: true,
		})
	case err != nil:
		return httpError(err)
	}
	return c.Redirect(postURL(username, postID), fiber.StatusFound)
}

func (h *handler) addComment(c *fiber.Ctx) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}
	username := c.Params("username")
	_, err = h.svc.AddComment(c.UserContext(), username, postID, currentAuthor(c), c.FormValue("text"))
	var verr *ValidationError
	if err != nil && !errors.As(err, &verr) {
		return httpError(err)
	}
	return c.Redirect(postURL(username, postID), fiber.StatusFound)
}

func (h *handler) followIndex(c *fiber.Ctx) error {
	pg, err := h.svc.FollowedFeed(c.UserContext(), currentAuthor(c).ID, paginator.ParseNumber(c.Query("page")))
	if err != nil {
		return err
	}
	return c.JSON(newListView(pg))
}

func (h *handler) follow(c *fiber.Ctx) error {
	username := c.Params("username")
	if _, err := h.svc.Follow(c.UserContext(), currentAuthor(c).ID, username); err != nil {
		return httpError(err)
	}
	return c.Redirect(profileURL(username), fiber.StatusFound)
}

func (h *handler) unfollow(c *fiber.Ctx) error {
	username := c.Params("username")
	if _, err := h.svc.Unfollow(c.UserContext(), currentAuthor(c).ID, username); err != nil {
		return httpError(err)
	}
	return c.Redirect(profileURL(username), fiber.StatusFound)
}

func (h *handler) renderForm(c *fiber.Ctx, view editView) error {
	groups, err := h.svc.Groups(c.UserContext())
	if err != nil {
		return err
	}
	view.Groups = groups
	return c.Status(fiber.StatusBadRequest).JSON(view)
}

func readPostForm(c *fiber.Ctx) PostForm {
	form := PostForm{
		Text:  c.FormValue("text"),
		Group: c.FormValue("group"),
	}
	if fh, err := c.FormFile("image"); err == nil && fh.Size > 0 {
		form.Image = fh
	}
	return form
}

func currentAuthor(c *fiber.Ctx) Author {
	user, _ := auth.CurrentUser(c)
	return Author{ID: user.ID, Username: user.Username}
}

func postIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("post_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.ErrNotFound
	}
	return id, nil
}

func postURL(username string, postID int64) string {
	return fmt.Sprintf("/%s/%d/", url.PathEscape(username), postID)
}

func profileURL(username string) string {
	return "/" + url.PathEscape(username) + "/"
}

func sendJSON(c *fiber.Ctx, body []byte) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.ErrNotFound
	case errors.Is(err, ErrForbidden):
		return fiber.ErrForbidden
	}
	return err
}
