package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"panoguess/internal/cache"
	"panoguess/internal/models"
)

type fixedRounds struct {
	rounds []models.Round
	err    error
}

func (f *fixedRounds) NextRound(context.Context) (models.Round, error) {
	if len(f.rounds) == 0 {
		if f.err != nil {
			return models.Round{}, f.err
		}
		return models.Round{}, cache.ErrNoRoundAvailable
	}
	r := f.rounds[0]
	f.rounds = f.rounds[1:]
	return r, nil
}

type names map[string]string

func (n names) NameOf(code string) string {
	if name, ok := n[code]; ok {
		return name
	}
	return code
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(Event))
	return p.err
}

var testNames = names{"FR": "France", "DE": "Germany", "JP": "Japan", "BR": "Brazil"}

func testRound(id, correct string) models.Round {
	return models.Round{ImageID: id, Options: [models.OptionCount]string{"DE", "FR", "BR", "JP"}, CorrectCode: correct}
}

func TestSession_Flow(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	src := &fixedRounds{rounds: []models.Round{testRound("img-1", "FR"), testRound("img-2", "JP")}}
	s := NewSession(src, testNames, pub, nil)

	p, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p.ImageID != "img-1" || len(p.Options) != models.OptionCount {
		t.Fatalf("prompt = %+v", p)
	}
	if p.Options[1] != (Option{Code: "FR", Name: "France"}) {
		t.Errorf("option 1 = %+v", p.Options[1])
	}
	if p.ViewerURL == "" {
		t.Error("missing viewer url")
	}

	res, err := s.Answer(ctx, "FR")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !res.Correct || res.Score != (Score{Correct: 1}) {
		t.Errorf("result = %+v", res)
	}

	if _, err := s.Answer(ctx, "FR"); !errors.Is(err, ErrNoActiveRound) {
		t.Errorf("second answer err = %v; want ErrNoActiveRound", err)
	}

	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	res, err = s.Answer(ctx, "BR")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Correct || res.CorrectCode != "JP" || res.CorrectName != "Japan" {
		t.Errorf("result = %+v", res)
	}
	if got, want := s.Score().String(), "Correct: 1 | Incorrect: 1"; got != want {
		t.Errorf("score = %q; want %q", got, want)
	}

	if len(pub.events) != 4 {
		t.Fatalf("published %d events; want 4", len(pub.events))
	}
	wantTypes := []string{EventRoundServed, EventAnswer, EventRoundServed, EventAnswer}
	for i, e := range pub.events {
		if e.Type != wantTypes[i] || e.SessionID != s.ID() || pub.keys[i] != s.ID() {
			t.Errorf("event %d = %+v (key %s)", i, e, pub.keys[i])
		}
	}
	if last := pub.events[3]; last.ChosenCode != "BR" || last.Correct == nil || *last.Correct {
		t.Errorf("answer event = %+v", last)
	}
}

func TestSession_AnswerWithoutRound(t *testing.T) {
	s := NewSession(&fixedRounds{}, testNames, nil, nil)
	if _, err := s.Answer(context.Background(), "FR"); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("err = %v; want ErrNoActiveRound", err)
	}
}

func TestSession_UnknownOption(t *testing.T) {
	s := NewSession(&fixedRounds{rounds: []models.Round{testRound("img", "FR")}}, testNames, nil, nil)
	if _, err := s.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Answer(context.Background(), "NZ"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("err = %v; want ErrUnknownOption", err)
	}
	// The round stays answerable.
	if _, err := s.Answer(context.Background(), "FR"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if s.Score() != (Score{Correct: 1}) {
		t.Errorf("score = %+v", s.Score())
	}
}

func TestSession_NoRoundAvailable(t *testing.T) {
	s := NewSession(&fixedRounds{}, testNames, nil, nil)
	if _, err := s.Next(context.Background()); !errors.Is(err, cache.ErrNoRoundAvailable) {
		t.Fatalf("err = %v; want ErrNoRoundAvailable", err)
	}
}

func TestSession_PublishFailureIgnored(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := NewSession(&fixedRounds{rounds: []models.Round{testRound("img", "DE")}}, testNames, pub, nil)
	if _, err := s.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := s.Answer(context.Background(), "DE"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
}
