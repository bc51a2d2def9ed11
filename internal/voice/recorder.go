package voice

import (
	"bytes"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/model"
)

// Recorder buffers one voice capture for a session. The browser owns
// the microphone; the server only mirrors its lifecycle so the rest of
// the stack can reason about a single well-defined state machine:
//
//	off -> acquiring -> armed -> recording -> off
//
// Chunks arrive over HTTP as the browser's recorder emits them. A
// capture that ends with an empty buffer is reported as nothing
// recognized, never forwarded.
type Recorder struct {
	mu        sync.Mutex
	state     model.RecorderState
	buf       bytes.Buffer
	startedAt time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{state: model.RecorderOff}
}

func (r *Recorder) State() model.RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Begin moves the recorder out of idle while the browser asks for
// microphone access. A capture already in flight is rejected.
func (r *Recorder) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != model.RecorderOff {
		return apperrors.Busy("voice recording")
	}
	r.state = model.RecorderAcquiring
	r.startedAt = time.Now()
	return nil
}

// Acquired reports the browser's permission result. Denied access
// resets the recorder and surfaces a permission error.
func (r *Recorder) Acquired(granted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != model.RecorderAcquiring {
		return apperrors.Conflict("recorder is not acquiring a microphone")
	}
	if !granted {
		r.reset()
		return apperrors.PermissionDenied("Microphone access was denied")
	}
	r.state = model.RecorderArmed
	return nil
}

// Feed appends one audio chunk. The first chunk moves an armed
// recorder into recording.
func (r *Recorder) Feed(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case model.RecorderArmed:
		r.state = model.RecorderRecording
	case model.RecorderRecording:
	default:
		return apperrors.Conflict("recorder is not accepting audio")
	}

	r.buf.Write(chunk)
	return nil
}

// Finish ends the capture and returns the buffered audio. An armed
// recorder that never produced a chunk, or a capture whose chunks
// were all empty, yields a nothing-recognized error.
func (r *Recorder) Finish() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != model.RecorderArmed && r.state != model.RecorderRecording {
		return nil, apperrors.Conflict("recorder is not capturing")
	}

	audio := make([]byte, r.buf.Len())
	copy(audio, r.buf.Bytes())
	elapsed := time.Since(r.startedAt)
	r.reset()

	if len(audio) == 0 {
		log.Debug().Dur("elapsed", elapsed).Msg("voice capture ended empty")
		return nil, apperrors.NothingRecognized()
	}

	log.Debug().
		Int("bytes", len(audio)).
		Dur("elapsed", elapsed).
		Msg("voice capture finished")
	return audio, nil
}

// Abort discards the capture from any state. Safe to call repeatedly.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// reset must be called with the lock held.
func (r *Recorder) reset() {
	r.state = model.RecorderOff
	r.buf.Reset()
}

// Registry hands out one recorder per session.
type Registry struct {
	mu        sync.Mutex
	recorders map[string]*Recorder
}

func NewRegistry() *Registry {
	return &Registry{recorders: make(map[string]*Recorder)}
}

func (g *Registry) ForSession(sessionID string) *Recorder {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.recorders[sessionID]
	if !ok {
		rec = NewRecorder()
		g.recorders[sessionID] = rec
	}
	return rec
}

// Drop aborts and removes a session's recorder, typically on logout.
func (g *Registry) Drop(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, ok := g.recorders[sessionID]; ok {
		rec.Abort()
		delete(g.recorders, sessionID)
	}
}
