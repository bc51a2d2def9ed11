package voice

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Playback is one in-flight speech stream. Its context is cancelled
// when a newer playback replaces it or the user stops it, which aborts
// the audio copy mid-stream.
type Playback struct {
	ID        string
	SessionID string
	MessageID string
	ctx       context.Context
	cancel    context.CancelFunc
}

func (p *Playback) Context() context.Context {
	return p.ctx
}

// Player enforces exclusive playback per session: starting a message
// silently stops whatever that session was playing before.
type Player struct {
	mu     sync.Mutex
	active map[string]*Playback // sessionID -> current playback
}

func NewPlayer() *Player {
	return &Player{active: make(map[string]*Playback)}
}

// Start registers a new playback for the session, cancelling any
// previous one first.
func (p *Player) Start(ctx context.Context, sessionID, messageID string) *Playback {
	playCtx, cancel := context.WithCancel(ctx)
	playback := &Playback{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		MessageID: messageID,
		ctx:       playCtx,
		cancel:    cancel,
	}

	p.mu.Lock()
	previous := p.active[sessionID]
	p.active[sessionID] = playback
	p.mu.Unlock()

	if previous != nil {
		previous.cancel()
		log.Debug().
			Str("sessionId", sessionID).
			Str("replacedMessageId", previous.MessageID).
			Str("messageId", messageID).
			Msg("playback replaced")
	}
	return playback
}

// Finish clears the playback if it is still the session's current one.
func (p *Player) Finish(playback *Playback) {
	p.mu.Lock()
	if p.active[playback.SessionID] == playback {
		delete(p.active, playback.SessionID)
	}
	p.mu.Unlock()
	playback.cancel()
}

// Stop cancels the session's current playback, if any. It reports
// whether anything was playing.
func (p *Player) Stop(sessionID string) bool {
	p.mu.Lock()
	playback := p.active[sessionID]
	delete(p.active, sessionID)
	p.mu.Unlock()

	if playback == nil {
		return false
	}
	playback.cancel()
	return true
}

// Current returns the message ID the session is playing, or "".
func (p *Player) Current(sessionID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if playback, ok := p.active[sessionID]; ok {
		return playback.MessageID
	}
	return ""
}
