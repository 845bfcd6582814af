package posts

import (
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/docstore"
)

// Collection is the document store collection holding posts.
const Collection = "posts"

// TimeLayout is the ISO-8601 form every createdAt is normalized to.
const TimeLayout = "2006-01-02T15:04:05.000Z"

const anonymousAuthor = "Anonymous"

var errMissingAuthor = errors.New("document has no string authorId")

type Comment struct {
	ID             string   `json:"id"`
	Content        string   `json:"content"`
	AuthorID       string   `json:"authorId"`
	AuthorName     string   `json:"authorName"`
	AuthorPhotoURL *string  `json:"authorPhotoURL,omitempty"`
	CreatedAt      string   `json:"createdAt"`
	Likes          []string `json:"likes"`
}

type Post struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	AuthorID       string    `json:"authorId"`
	AuthorName     string    `json:"authorName"`
	AuthorPhotoURL *string   `json:"authorPhotoURL,omitempty"`
	CreatedAt      string    `json:"createdAt"`
	Likes          []string  `json:"likes"`
	Comments       []Comment `json:"comments"`
}

func (p Post) LikedBy(uid string) bool {
	return slices.Contains(p.Likes, uid)
}

func (p Post) CanDelete(uid string) bool {
	return uid != "" && p.AuthorID == uid
}

// CanDeleteComment allows the comment author and the post author.
func (p Post) CanDeleteComment(c Comment, uid string) bool {
	return uid != "" && (c.AuthorID == uid || p.AuthorID == uid)
}

func (p Post) Comment(id string) (Comment, bool) {
	for _, c := range p.Comments {
		if c.ID == id {
			return c, true
		}
	}
	return Comment{}, false
}

func (c Comment) LikedBy(uid string) bool {
	return slices.Contains(c.Likes, uid)
}

// decodePost converts an untyped document into a Post. Documents without a string
// authorId are rejected; mistyped optional fields fall back to their zero values.
func decodePost(snap docstore.Snapshot) (Post, error) {
	d := snap.Data
	authorID, ok := d["authorId"].(string)
	if !ok {
		return Post{}, errMissingAuthor
	}
	return Post{
		ID:             snap.ID,
		Content:        stringField(d["content"]),
		AuthorID:       authorID,
		AuthorName:     stringField(d["authorName"]),
		AuthorPhotoURL: optionalString(d["authorPhotoURL"]),
		CreatedAt:      normalizeTime(d["createdAt"]),
		Likes:          stringList(d["likes"]),
		Comments:       decodeComments(snap.ID, d["comments"]),
	}, nil
}

func decodePosts(snaps []docstore.Snapshot) []Post {
	out := make([]Post, 0, len(snaps))
	for _, snap := range snaps {
		p, err := decodePost(snap)
		if err != nil {
			slog.Warn("skipping malformed post", "post_id", snap.ID, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

func decodeComments(postID string, v any) []Comment {
	raw, _ := v.([]any)
	out := make([]Comment, 0, len(raw))
	for _, el := range raw {
		c, ok := decodeComment(el)
		if !ok {
			slog.Warn("skipping malformed comment", "post_id", postID)
			continue
		}
		out = append(out, c)
	}
	return out
}

func decodeComment(v any) (Comment, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Comment{}, false
	}
	id, ok := m["id"].(string)
	if !ok || id == "" {
		return Comment{}, false
	}
	authorID, ok := m["authorId"].(string)
	if !ok {
		return Comment{}, false
	}
	return Comment{
		ID:             id,
		Content:        stringField(m["content"]),
		AuthorID:       authorID,
		AuthorName:     stringField(m["authorName"]),
		AuthorPhotoURL: optionalString(m["authorPhotoURL"]),
		CreatedAt:      normalizeTime(m["createdAt"]),
		Likes:          stringList(m["likes"]),
	}, true
}

// normalizeTime renders stored timestamps as ISO-8601 UTC with milliseconds.
// A pending or missing timestamp becomes "".
func normalizeTime(v any) string {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return t
		}
		return parsed.UTC().Format(TimeLayout)
	case float64:
		return time.UnixMilli(int64(t)).UTC().Format(TimeLayout)
	default:
		return ""
	}
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// stringList never returns nil so empty lists encode as [].
func stringList(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, el := range raw {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
