package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nigersavoir/savoir-client/internal/domain"
)

// SubjectKind selects the family of reaction endpoints.
type SubjectKind string

const (
	KindBook     SubjectKind = "books"
	KindDocument SubjectKind = "documents"
)

// reactionSummary is the wire shape of a tally. Pointers distinguish a missing
// field from a zero value.
type reactionSummary struct {
	BookID       *int64  `json:"bookId"`
	DocumentID   *int64  `json:"documentId"`
	LikeCount    *int    `json:"likeCount"`
	DislikeCount *int    `json:"dislikeCount"`
	MyReaction   *string `json:"myReaction"`
}

type reactionRequest struct {
	ReactionType domain.Reaction `json:"reactionType"`
}

func (s reactionSummary) tally(kind SubjectKind) (domain.ReactionTally, error) {
	id := s.BookID
	if kind == KindDocument {
		id = s.DocumentID
	}
	switch {
	case id == nil:
		return domain.ReactionTally{}, fmt.Errorf("%w: reaction summary without subject id", ErrMalformedResponse)
	case s.LikeCount == nil || s.DislikeCount == nil:
		return domain.ReactionTally{}, fmt.Errorf("%w: reaction summary %d without counts", ErrMalformedResponse, *id)
	case *s.LikeCount < 0 || *s.DislikeCount < 0:
		return domain.ReactionTally{}, fmt.Errorf("%w: reaction summary %d with negative count", ErrMalformedResponse, *id)
	}

	viewer := domain.ReactionNone
	if s.MyReaction != nil {
		r, err := domain.ParseReaction(*s.MyReaction)
		if err != nil || (r != domain.ReactionNone && string(r) != *s.MyReaction) {
			return domain.ReactionTally{}, fmt.Errorf("%w: reaction summary %d with reaction %q", ErrMalformedResponse, *id, *s.MyReaction)
		}
		viewer = r
	}

	return domain.ReactionTally{
		SubjectID:      *id,
		PositiveCount:  *s.LikeCount,
		NegativeCount:  *s.DislikeCount,
		ViewerReaction: viewer,
	}, nil
}

// ReactionSummary fetches the tallies of the given subjects. No request is
// made for an empty id list.
func (c *Client) ReactionSummary(ctx context.Context, kind SubjectKind, ids []int64) ([]domain.ReactionTally, error) {
	if len(ids) == 0 {
		return []domain.ReactionTally{}, nil
	}
	q := url.Values{}
	addIDs(q, "ids", ids)

	var raw []reactionSummary
	if err := c.getJSON(ctx, fmt.Sprintf("/reactions/%s/summary", kind), q, &raw); err != nil {
		return nil, err
	}

	tallies := make([]domain.ReactionTally, 0, len(raw))
	for _, s := range raw {
		t, err := s.tally(kind)
		if err != nil {
			return nil, err
		}
		tallies = append(tallies, t)
	}
	return tallies, nil
}

// SetReaction toggles the viewer's reaction and returns the server's tally.
func (c *Client) SetReaction(ctx context.Context, kind SubjectKind, id int64, r domain.Reaction) (domain.ReactionTally, error) {
	var raw reactionSummary
	if err := c.postJSON(ctx, fmt.Sprintf("/reactions/%s/%d", kind, id), reactionRequest{ReactionType: r}, &raw); err != nil {
		return domain.ReactionTally{}, err
	}
	t, err := raw.tally(kind)
	if err != nil {
		return domain.ReactionTally{}, err
	}
	if t.SubjectID != id {
		return domain.ReactionTally{}, fmt.Errorf("%w: asked for subject %d, got %d", ErrMalformedResponse, id, t.SubjectID)
	}
	return t, nil
}

func (c *Client) BookReactionSummary(ctx context.Context, ids []int64) ([]domain.ReactionTally, error) {
	return c.ReactionSummary(ctx, KindBook, ids)
}

func (c *Client) SetBookReaction(ctx context.Context, id int64, r domain.Reaction) (domain.ReactionTally, error) {
	return c.SetReaction(ctx, KindBook, id, r)
}

func (c *Client) DocumentReactionSummary(ctx context.Context, ids []int64) ([]domain.ReactionTally, error) {
	return c.ReactionSummary(ctx, KindDocument, ids)
}

func (c *Client) SetDocumentReaction(ctx context.Context, id int64, r domain.Reaction) (domain.ReactionTally, error) {
	return c.SetReaction(ctx, KindDocument, id, r)
}

// ReactionRemote binds the reaction endpoints of one subject kind.
type ReactionRemote struct {
	client *Client
	kind   SubjectKind
}

func (c *Client) Reactions(kind SubjectKind) *ReactionRemote {
	return &ReactionRemote{client: c, kind: kind}
}

func (r *ReactionRemote) Summary(ctx context.Context, ids []int64) ([]domain.ReactionTally, error) {
	return r.client.ReactionSummary(ctx, r.kind, ids)
}

func (r *ReactionRemote) SetReaction(ctx context.Context, id int64, reaction domain.Reaction) (domain.ReactionTally, error) {
	return r.client.SetReaction(ctx, r.kind, id, reaction)
}
