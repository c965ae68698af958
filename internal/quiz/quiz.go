// Package quiz defines the Quiz repository interface the Room
// orchestration core consumes but never writes to (spec.md §6.2). Quiz
// CRUD and persistent storage live outside this module's scope; this
// package supplies the interface plus an in-memory fake used by tests
// and local runs.
package quiz

import (
	"context"

	"github.com/kwizo/quizroom/internal/roomerr"
)

// Question is one quiz question as the core needs it: enough to drive
// answering_started/show_results without caching anything beyond that
// (spec.md §4.6's question payload contract).
type Question struct {
	Text             string
	Options          []string
	CorrectIndex     int
	TimeLimitSeconds int
	Points           int
	ImageURL         string
}

// Quiz is the read-only view the core consumes.
type Quiz struct {
	ID             string
	Title          string
	TotalQuestions int
	Questions      []Question
}

// Question returns the question at index, or ok=false if out of range.
func (q Quiz) Question(index int) (Question, bool) {
	if index < 0 || index >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[index], true
}

// Repository is the external collaborator the Room core consumes
// (spec.md §6.2). The core never writes through it.
type Repository interface {
	FindByID(ctx context.Context, quizID string) (Quiz, error)
}

// StaticRepository is an in-memory Repository fake, seeded up front.
// It exists for local runs and tests where a full quiz-authoring
// service is out of scope (spec.md §1: "quiz CRUD ... treated as a
// Quiz repository interface").
type StaticRepository struct {
	quizzes map[string]Quiz
}

// NewStaticRepository builds a repository seeded with the given quizzes.
func NewStaticRepository(quizzes ...Quiz) *StaticRepository {
	repo := &StaticRepository{quizzes: make(map[string]Quiz, len(quizzes))}
	for _, q := range quizzes {
		repo.quizzes[q.ID] = q
	}
	return repo
}

// Put adds or replaces a quiz.
func (s *StaticRepository) Put(q Quiz) {
	s.quizzes[q.ID] = q
}

func (s *StaticRepository) FindByID(_ context.Context, quizID string) (Quiz, error) {
	q, ok := s.quizzes[quizID]
	if !ok {
		return Quiz{}, roomerr.New(roomerr.NotFound, "quiz not found")
	}
	return q, nil
}
