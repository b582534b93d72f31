package httpapi

import (
	"context"
	"net/http"

	"github.com/UkralStul/social-feed-service/internal/auth"
	"github.com/UkralStul/social-feed-service/internal/comments"
	"github.com/UkralStul/social-feed-service/internal/domain"
)

type commentBody struct {
	Content         string `json:"content"`
	ParentCommentID string `json:"parent_comment_id"`
}

// commentParams разбирает id поста и комментария из пути.
func commentParams(r *http.Request) (postID, commentID string, err error) {
	if postID, err = idParam(r, "id"); err != nil {
		return "", "", err
	}
	if commentID, err = idParam(r, "commentId"); err != nil {
		return "", "", err
	}
	return postID, commentID, nil
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) error {
	postID, err := idParam(r, "id")
	if err != nil {
		return err
	}
	page, err := h.svc.Comments.List(r.Context(), auth.UserID(r.Context()), postID, pageArgs(r, comments.DefaultLimit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) error {
	postID, err := idParam(r, "id")
	if err != nil {
		return err
	}
	body, err := decode[commentBody](r)
	if err != nil {
		return err
	}
	if body.ParentCommentID != "" {
		if body.ParentCommentID, err = parseID(body.ParentCommentID, "parent_comment_id"); err != nil {
			return err
		}
	}
	view, err := h.svc.Comments.Create(r.Context(), auth.UserID(r.Context()), postID, body.Content, body.ParentCommentID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, view)
	return nil
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request) error {
	postID, commentID, err := commentParams(r)
	if err != nil {
		return err
	}
	body, err := decode[commentBody](r)
	if err != nil {
		return err
	}
	view, err := h.svc.Comments.Update(r.Context(), auth.UserID(r.Context()), postID, commentID, body.Content)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) error {
	postID, commentID, err := commentParams(r)
	if err != nil {
		return err
	}
	if err := h.svc.Comments.Delete(r.Context(), auth.UserID(r.Context()), postID, commentID); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, message{Message: "Comment deleted successfully"})
	return nil
}

func (h *Handler) likeComment(w http.ResponseWriter, r *http.Request) error {
	return h.reactToComment(w, r, h.svc.Engagement.LikeComment)
}

func (h *Handler) dislikeComment(w http.ResponseWriter, r *http.Request) error {
	return h.reactToComment(w, r, h.svc.Engagement.DislikeComment)
}

type reactionFunc func(ctx context.Context, userID, postID, commentID string) (domain.ReactionState, error)

func (h *Handler) reactToComment(w http.ResponseWriter, r *http.Request, react reactionFunc) error {
	postID, commentID, err := commentParams(r)
	if err != nil {
		return err
	}
	state, err := react(r.Context(), auth.UserID(r.Context()), postID, commentID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, state)
	return nil
}
