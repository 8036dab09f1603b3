package store

import (
	"errors"
	"time"
)

// AssetKind is the closed set of content kinds a file can be classified into.
type AssetKind int

const (
	KindUnsupported AssetKind = iota
	KindImage
	KindPDF
)

func (k AssetKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

// DocumentAsset is a single ingested file. It is never mutated after creation.
type DocumentAsset struct {
	Kind        AssetKind `json:"kind"`
	Data        []byte    `json:"-"`
	DisplayName string    `json:"display_name"`
}

// Size returns the raw byte length counted against the session quota.
func (a DocumentAsset) Size() int64 {
	return int64(len(a.Data))
}

// State of a user session
type State string

const (
	StateIdle         State = "IDLE"
	StateAccumulating State = "ACCUMULATING"
	StateProcessing   State = "PROCESSING"
)

// Session represents the not-yet-submitted input of one user.
type Session struct {
	UserID string `json:"user_id"`
	State  State  `json:"state"`

	// Insertion order of both slices is the order the model sees them in.
	Texts  []string        `json:"texts"`
	Assets []DocumentAsset `json:"assets"`

	// Always equals the sum of len(Data) over Assets.
	CumulativeBytes int64 `json:"cumulative_bytes"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Batch is what a drained session hands over to prompt assembly.
type Batch struct {
	UserID string
	Texts  []string
	Assets []DocumentAsset
	Bytes  int64
}

// IsEmpty reports whether the batch holds neither texts nor assets.
func (b Batch) IsEmpty() bool {
	return len(b.Texts) == 0 && len(b.Assets) == 0
}

func NewSession(userID string) *Session {
	return &Session{
		UserID:    userID,
		State:     StateIdle,
		UpdatedAt: time.Now(),
	}
}

func (s *Session) AddText(text string) {
	s.Texts = append(s.Texts, text)
	s.touch()
}

func (s *Session) AddAsset(asset DocumentAsset) {
	s.Assets = append(s.Assets, asset)
	s.CumulativeBytes += asset.Size()
	s.touch()
}

// Clear empties the session and returns it to Idle.
func (s *Session) Clear() {
	s.Texts = nil
	s.Assets = nil
	s.CumulativeBytes = 0
	s.State = StateIdle
	s.UpdatedAt = time.Now()
}

// Batch copies the current content out of the session.
func (s *Session) Batch() Batch {
	texts := make([]string, len(s.Texts))
	copy(texts, s.Texts)
	assets := make([]DocumentAsset, len(s.Assets))
	copy(assets, s.Assets)

	return Batch{
		UserID: s.UserID,
		Texts:  texts,
		Assets: assets,
		Bytes:  s.CumulativeBytes,
	}
}

// Snapshot returns a copy safe to hand outside the session lock.
func (s *Session) Snapshot() Session {
	b := s.Batch()
	return Session{
		UserID:          s.UserID,
		State:           s.State,
		Texts:           b.Texts,
		Assets:          b.Assets,
		CumulativeBytes: s.CumulativeBytes,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (s *Session) touch() {
	if s.State == StateIdle {
		s.State = StateAccumulating
	}
	s.UpdatedAt = time.Now()
}

// ErrEmptySession is returned when an ask finds neither texts nor assets.
var ErrEmptySession = errors.New("session has no data")
