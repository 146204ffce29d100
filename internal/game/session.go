// Package game keeps score for one player and drives rounds out of the cache.
package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"panoguess/internal/logging"
	"panoguess/internal/models"
	"panoguess/pkg/mapillary"
)

var (
	ErrNoActiveRound = errors.New("no active round")
	ErrUnknownOption = errors.New("answer is not one of the offered options")
)

const (
	EventRoundServed = "round_served"
	EventAnswer      = "answer"
)

// RoundSource hands out ready rounds. Satisfied by *cache.RoundCache.
type RoundSource interface {
	NextRound(ctx context.Context) (models.Round, error)
}

// Names resolves region codes to display names. Satisfied by *catalog.Catalog.
type Names interface {
	NameOf(code string) string
}

// Publisher receives game events. Satisfied by *kafkaclient.Publisher.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Event is the payload published for every served round and every answer.
type Event struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	ImageID     string    `json:"image_id"`
	CorrectCode string    `json:"correct_code"`
	ChosenCode  string    `json:"chosen_code,omitempty"`
	Correct     *bool     `json:"correct,omitempty"`
	At          time.Time `json:"at"`
}

type Option struct {
	Code string
	Name string
}

// Prompt is what the player sees for one round.
type Prompt struct {
	ImageID   string
	ViewerURL string
	Options   []Option
}

type Result struct {
	Correct     bool
	CorrectCode string
	CorrectName string
	Score       Score
}

type Score struct {
	Correct   int
	Incorrect int
}

func (s Score) String() string {
	return fmt.Sprintf("Correct: %d | Incorrect: %d", s.Correct, s.Incorrect)
}

type Session struct {
	id     string
	rounds RoundSource
	names  Names
	events Publisher
	logger logging.Logger

	mu      sync.Mutex
	current *models.Round
	score   Score
}

// NewSession starts a session with a fresh id. events may be nil.
func NewSession(rounds RoundSource, names Names, events Publisher, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.Noop()
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		rounds: rounds,
		names:  names,
		events: events,
		logger: logger.With(logging.String("session_id", id)),
	}
}

func (s *Session) ID() string { return s.id }

// Next fetches the next round and makes it current. Errors from the round
// source, including cache.ErrNoRoundAvailable, are returned unchanged.
func (s *Session) Next(ctx context.Context) (Prompt, error) {
	r, err := s.rounds.NextRound(ctx)
	if err != nil {
		return Prompt{}, err
	}

	s.mu.Lock()
	s.current = &r
	s.mu.Unlock()

	p := Prompt{ImageID: r.ImageID, ViewerURL: mapillary.ViewerURL(r.ImageID)}
	for _, code := range r.Options {
		p.Options = append(p.Options, Option{Code: code, Name: s.names.NameOf(code)})
	}
	s.publish(ctx, Event{Type: EventRoundServed, ImageID: r.ImageID, CorrectCode: r.CorrectCode})
	return p, nil
}

// Answer scores code against the current round. A round can be answered once.
func (s *Session) Answer(ctx context.Context, code string) (Result, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return Result{}, ErrNoActiveRound
	}
	r := *s.current
	if !slices.Contains(r.Options[:], code) {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOption, code)
	}
	correct := r.IsCorrect(code)
	if correct {
		s.score.Correct++
	} else {
		s.score.Incorrect++
	}
	s.current = nil
	score := s.score
	s.mu.Unlock()

	s.logger.Debug(ctx, "answer scored",
		logging.String("image_id", r.ImageID),
		logging.String("chosen", code),
		logging.String("correct_code", r.CorrectCode))
	s.publish(ctx, Event{
		Type:        EventAnswer,
		ImageID:     r.ImageID,
		CorrectCode: r.CorrectCode,
		ChosenCode:  code,
		Correct:     &correct,
	})

	return Result{
		Correct:     correct,
		CorrectCode: r.CorrectCode,
		CorrectName: s.names.NameOf(r.CorrectCode),
		Score:       score,
	}, nil
}

func (s *Session) Score() Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

func (s *Session) publish(ctx context.Context, e Event) {
	if s.events == nil {
		return
	}
	e.SessionID = s.id
	e.At = time.Now().UTC()
	if err := s.events.Publish(ctx, s.id, e); err != nil {
		s.logger.Warn(ctx, "publishing event failed", logging.String("type", e.Type), logging.Err(err))
	}
}
