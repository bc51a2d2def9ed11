package model

import (
	"encoding/json"
	"time"
)

// ChatMessage is one turn in a session's transcript. The transcript is
// append-only: author, text and image URL never change after insert.
// AudioMediaID is the only mutable field, memoizing the synthesized
// speech resource the first time a message is played.
type ChatMessage struct {
	ID             string           `db:"id" json:"id"`
	SessionID      string           `db:"session_id" json:"-"`
	Seq            int              `db:"seq" json:"seq"`
	Author         MessageAuthor    `db:"author" json:"from"`
	Text           string           `db:"text" json:"text"`
	ImageURL       *string          `db:"image_url" json:"imageUrl,omitempty"`
	AudioMediaID   *string          `db:"audio_media_id" json:"audioMediaId,omitempty"`
	ProposedAction *json.RawMessage `db:"proposed_action" json:"proposedAction,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
}

type AppendMessageParams struct {
	SessionID      string
	Author         MessageAuthor
	Text           string
	ImageURL       *string
	ProposedAction *json.RawMessage
}
