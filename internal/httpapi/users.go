package httpapi

import (
	"net/http"

	"github.com/UkralStul/social-feed-service/internal/auth"
	"github.com/UkralStul/social-feed-service/internal/feed"
	"github.com/UkralStul/social-feed-service/internal/profiles"
)

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) error {
	userID := auth.UserID(r.Context())
	view, err := h.svc.Profiles.Get(r.Context(), userID, userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	view, err := h.svc.Profiles.Get(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

// updateProfile принимает JSON или multipart с полем avatar.
func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) error {
	var in profiles.UpdateInput
	if isMultipart(r) {
		if err := h.parseMultipart(w, r); err != nil {
			return err
		}
		avatar, err := formFile(r, "avatar")
		if err != nil {
			return err
		}
		in = profiles.UpdateInput{
			Username: formValue(r, "username"),
			Name:     formValue(r, "name"),
			Bio:      formValue(r, "bio"),
			Avatar:   avatar,
		}
	} else {
		body, err := decode[struct {
			Username *string `json:"username"`
			Name     *string `json:"name"`
			Bio      *string `json:"bio"`
		}](r)
		if err != nil {
			return err
		}
		in = profiles.UpdateInput{Username: body.Username, Name: body.Name, Bio: body.Bio}
	}

	view, err := h.svc.Profiles.Update(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

func (h *Handler) userPosts(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	page, err := h.svc.Feed.UserPosts(r.Context(), auth.UserID(r.Context()), id, pageArgs(r, feed.DefaultLimit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *Handler) savedPosts(w http.ResponseWriter, r *http.Request) error {
	page, err := h.svc.Feed.Saved(r.Context(), auth.UserID(r.Context()), pageArgs(r, feed.SavedDefaultLimit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *Handler) follow(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Engagement.Follow(r.Context(), auth.UserID(r.Context()), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, message{Message: "Successfully followed user"})
	return nil
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Engagement.Unfollow(r.Context(), auth.UserID(r.Context()), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, message{Message: "Successfully unfollowed user"})
	return nil
}
