package httpapi

import (
	"net/http"

	"github.com/UkralStul/social-feed-service/internal/auth"
	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/feed"
	"github.com/UkralStul/social-feed-service/internal/posts"
	"github.com/go-chi/chi/v5"
)

type likeResponse struct {
	Message string `json:"message"`
	Liked   bool   `json:"liked"`
}

type saveResponse struct {
	Message string `json:"message"`
	Saved   bool   `json:"saved"`
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) error {
	page, err := h.svc.Feed.All(r.Context(), auth.UserID(r.Context()), pageArgs(r, feed.DefaultLimit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *Handler) followFeed(w http.ResponseWriter, r *http.Request) error {
	page, err := h.svc.Feed.Feed(r.Context(), auth.UserID(r.Context()), pageArgs(r, feed.DefaultLimit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *Handler) mentions(w http.ResponseWriter, r *http.Request) error {
	page, err := h.svc.Feed.Mentions(r.Context(), auth.UserID(r.Context()), pageArgs(r, feed.DefaultLimit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *Handler) postsByHashtag(w http.ResponseWriter, r *http.Request) error {
	page, err := h.svc.Feed.ByHashtag(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "tag"), pageArgs(r, feed.DefaultLimit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *Handler) hashtagInfo(w http.ResponseWriter, r *http.Request) error {
	info, err := h.svc.Feed.HashtagInfo(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, info)
	return nil
}

// createPost принимает multipart: media, caption, media_type, mentions.
func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) error {
	if !isMultipart(r) {
		return domain.InvalidInput("media file is required")
	}
	if err := h.parseMultipart(w, r); err != nil {
		return err
	}
	upload, err := formFile(r, "media")
	if err != nil {
		return err
	}

	in := posts.CreateInput{
		Caption:   r.FormValue("caption"),
		MediaType: r.FormValue("media_type"),
		Mentions:  formList(r, "mentions"),
		Media:     upload,
	}
	view, err := h.svc.Posts.Create(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, view)
	return nil
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	view, err := h.svc.Feed.Post(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	body, err := decode[struct {
		Caption *string `json:"caption"`
	}](r)
	if err != nil {
		return err
	}
	if body.Caption == nil {
		return domain.InvalidInput("caption is required")
	}
	view, err := h.svc.Posts.UpdateCaption(r.Context(), auth.UserID(r.Context()), id, *body.Caption)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Posts.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, message{Message: "Post deleted successfully"})
	return nil
}

func (h *Handler) likePost(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	liked, err := h.svc.Engagement.ToggleLike(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		return err
	}
	resp := likeResponse{Message: "Post unliked successfully", Liked: false}
	if liked {
		resp = likeResponse{Message: "Post liked successfully", Liked: true}
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) savePost(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Engagement.SavePost(r.Context(), auth.UserID(r.Context()), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, saveResponse{Message: "Post saved successfully", Saved: true})
	return nil
}

func (h *Handler) unsavePost(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Engagement.UnsavePost(r.Context(), auth.UserID(r.Context()), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, saveResponse{Message: "Post unsaved successfully", Saved: false})
	return nil
}
