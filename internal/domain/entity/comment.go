package entity

import "time"

// DiscussionComment belongs to a document request in the discussion phase.
// The closing act is itself recorded as a comment with ForumClosed set, which
// is a terminal, idempotent marker.
type DiscussionComment struct {
	ID            int64     `json:"id"`
	RequestID     int64     `json:"request_id"`
	Round         int       `json:"round"` // discussion round the comment belongs to
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	AuthorRole    string    `json:"author_role"`
	Body          string    `json:"body"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
	ForumClosed   bool      `json:"forum_closed"`
	System        bool      `json:"system"` // authored by the engine, not a participant
	CreatedAt     time.Time `json:"created_at"`
}

// FinanceAuthored reports whether the comment counts toward the discussion
// gate's finance-participation requirement.
func (c *DiscussionComment) FinanceAuthored() bool {
	return !c.ForumClosed && (c.AuthorRole == RoleHeadFinance || c.AuthorRole == RoleStaffFinance)
}
