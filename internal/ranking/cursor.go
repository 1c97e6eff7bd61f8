package ranking

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// ErrInvalidCursor is returned for a malformed or tampered cursor token.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the boundary of a section: the sort keys of the last post
// emitted on the previous page.
type Cursor struct {
	PostID       string    `json:"id"`
	CommentCount int       `json:"c"`
	LikeCount    int       `json:"l"`
	CreatedOn    time.Time `json:"t"`
}

// CursorFor captures every sort key of p so the cursor works for any
// criteria.
func CursorFor(p *models.Post) *Cursor {
	return &Cursor{
		PostID:       p.ID,
		CommentCount: p.EffectiveCommentCount(),
		LikeCount:    p.EffectiveLikeCount(),
		CreatedOn:    p.CreatedOn,
	}
}

// Cursors holds one cursor per section. A nil cursor starts the section
// from its first page.
type Cursors struct {
	LastCommented *Cursor
	LastNew       *Cursor
	LastSorted    *Cursor
}

// Codec turns cursors into opaque, HMAC-signed tokens for clients.
type Codec struct {
	secret []byte
}

// RandomSecret returns a fresh signing secret for processes started
// without a configured one.
func RandomSecret() string {
	return rand.Text()
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode returns "" for a nil cursor.
func (c *Codec) Encode(cur *Cursor) string {
	if cur == nil {
		return ""
	}
	payload, err := json.Marshal(cur)
	if err != nil {
		return ""
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(c.sign(payload))
}

// Decode returns nil, nil for an empty token.
func (c *Codec) Decode(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	body, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidCursor
	}
	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(body)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	gotMAC, err := enc.DecodeString(sig)
	if err != nil || !hmac.Equal(gotMAC, c.sign(payload)) {
		return nil, ErrInvalidCursor
	}

	var cur Cursor
	if err := json.Unmarshal(payload, &cur); err != nil {
		return nil, ErrInvalidCursor
	}
	return &cur, nil
}

func (c *Codec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
