package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"Tribe/module/social/model"
	"Tribe/service/realtime"
	"Tribe/tools/errs"
)

// API is the REST side of a client: mutations go out through it while
// the optimistic store holds the provisional entry. A request error
// rolls the entry back; the canonical event arriving on the session
// reconciles it.
type API struct {
	base  string
	token string
	http  *http.Client
	store *Store
}

func NewAPI(base, token string, store *Store) *API {
	return &API{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
		store: store,
	}
}

// CreatePost runs the optimistic flow for a feed post. The returned id
// is the provisional one; the durable id arrives with the newPost event.
func (a *API) CreatePost(ctx context.Context, content, imageURL string) (string, error) {
	provID := a.store.BeginPost(content, imageURL)
	in := map[string]string{"content": content, "imageUrl": imageURL}
	if err := a.do(ctx, http.MethodPost, "/api/posts", in, nil); err != nil {
		a.store.Fail(provID, err)
		return "", err
	}
	return provID, nil
}

func (a *API) SendMessage(ctx context.Context, peerID, text string) (string, error) {
	provID := a.store.BeginMessage(peerID, text)
	in := map[string]string{"message": text}
	if err := a.do(ctx, http.MethodPost, "/api/messages/"+peerID, in, nil); err != nil {
		a.store.Fail(provID, err)
		return "", err
	}
	return provID, nil
}

func (a *API) SendTribeMessage(ctx context.Context, tribeID, text string) (string, error) {
	provID := a.store.BeginTribeMessage(tribeID, text)
	in := map[string]string{"message": text}
	if err := a.do(ctx, http.MethodPost, "/api/tribes/"+tribeID+"/messages", in, nil); err != nil {
		a.store.Fail(provID, err)
		return "", err
	}
	return provID, nil
}

// ToggleLike and the other non-insert mutations have no provisional
// entry; the postUpdated broadcast updates the store for everyone,
// the caller included.
func (a *API) ToggleLike(ctx context.Context, postID string) error {
	return a.do(ctx, http.MethodPut, "/api/posts/"+postID+"/like", nil, nil)
}

func (a *API) AddComment(ctx context.Context, postID, text string) error {
	return a.do(ctx, http.MethodPost, "/api/posts/"+postID+"/comments", map[string]string{"text": text}, nil)
}

func (a *API) DeletePost(ctx context.Context, postID string) error {
	return a.do(ctx, http.MethodDelete, "/api/posts/"+postID, nil, nil)
}

func (a *API) Follow(ctx context.Context, userID string) error {
	return a.do(ctx, http.MethodPut, "/api/users/"+userID+"/follow", nil, nil)
}

func (a *API) Unfollow(ctx context.Context, userID string) error {
	return a.do(ctx, http.MethodPut, "/api/users/"+userID+"/unfollow", nil, nil)
}

func (a *API) MarkNotificationRead(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPut, "/api/notifications/"+id+"/read", nil, nil)
}

func (a *API) MarkAllNotificationsRead(ctx context.Context) error {
	return a.do(ctx, http.MethodPut, "/api/notifications/read-all", nil, nil)
}

// ===== history pulls, used on startup and after a reconnect =====

func (a *API) PullPosts(ctx context.Context) error {
	var posts []*model.Post
	if err := a.do(ctx, http.MethodGet, "/api/posts", nil, &posts); err != nil {
		return err
	}
	a.store.SeedPosts(posts)
	return nil
}

func (a *API) PullMessages(ctx context.Context, peerID string) error {
	var msgs []*model.Message
	if err := a.do(ctx, http.MethodGet, "/api/messages/"+peerID, nil, &msgs); err != nil {
		return err
	}
	a.store.SeedMessages(realtime.DMRoom(a.store.selfID, peerID), msgs)
	return nil
}

func (a *API) PullTribeMessages(ctx context.Context, tribeID string) error {
	var msgs []*model.TribeMessage
	if err := a.do(ctx, http.MethodGet, "/api/tribes/"+tribeID+"/messages", nil, &msgs); err != nil {
		return err
	}
	a.store.SeedTribeMessages(tribeID, msgs)
	return nil
}

func (a *API) PullNotifications(ctx context.Context) error {
	var ns []*model.Notification
	if err := a.do(ctx, http.MethodGet, "/api/notifications", nil, &ns); err != nil {
		return err
	}
	a.store.SeedNotifications(ns)
	return nil
}

func (a *API) PullConversations(ctx context.Context) ([]*model.Conversation, error) {
	var out []*model.Conversation
	if err := a.do(ctx, http.MethodGet, "/api/messages/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errs.Wrap(err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return errs.Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return errs.ErrTransientNetwork.WrapMsg("request", "path", path, "err", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var ce errs.CodeError
		if jerr := json.NewDecoder(resp.Body).Decode(&ce); jerr == nil && ce.Code != 0 {
			return errs.Wrap(&ce)
		}
		return errs.ErrInternal.WrapMsg("unexpected status", "path", path, "status", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errs.Wrap(err)
		}
	}
	return nil
}
