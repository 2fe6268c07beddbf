// Package exam publishes exams to a section and lists them.
package exam

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shrimpsizemoose/trekker/logger"

	"campusroll/internal/clock"
	"campusroll/internal/ids"
	"campusroll/internal/metrics"
	"campusroll/internal/model"
	"campusroll/internal/store"
)

var (
	ErrInvalidExam = errors.New("invalid exam")
	ErrNotFound    = errors.New("exam not found")
)

// Draft is what a professor submits. Text exams need Content, file exams
// need FileRef and FileName.
type Draft struct {
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description"`
	Section     model.Section  `json:"section" validate:"required,section"`
	DueDate     *time.Time     `json:"dueDate"`
	Type        model.ExamType `json:"type" validate:"required,oneof=text file"`
	Content     string         `json:"content" validate:"required_if=Type text"`
	FileRef     string         `json:"fileRef" validate:"required_if=Type file"`
	FileName    string         `json:"fileName" validate:"required_if=Type file"`
}

// Professors resolves the publishing account.
type Professors interface {
	Professor(ctx context.Context, id string) (model.Account, error)
}

// Service manages the exams key.
type Service struct {
	kv       store.Store
	accounts Professors
	validate *validator.Validate
	clock    clock.Clock
	newID    func() string
}

type Option func(*Service)

func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }

func WithIDs(fn func() string) Option { return func(s *Service) { s.newID = fn } }

func NewService(kv store.Store, accounts Professors, opts ...Option) *Service {
	v := validator.New()
	if err := v.RegisterValidation("section", func(fl validator.FieldLevel) bool {
		return model.Section(fl.Field().String()).Valid()
	}); err != nil {
		panic(errors.Wrap(err, "register section validation"))
	}
	s := &Service{kv: kv, accounts: accounts, validate: v, clock: clock.System, newID: ids.New}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish validates draft and appends it to the exams list.
func (s *Service) Publish(ctx context.Context, professorID string, draft Draft) (model.Exam, error) {
	prof, err := s.accounts.Professor(ctx, professorID)
	if err != nil {
		return model.Exam{}, err
	}
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Content = strings.TrimSpace(draft.Content)
	if err := s.validate.Struct(draft); err != nil {
		return model.Exam{}, errors.Wrap(ErrInvalidExam, describe(err))
	}

	ex := model.Exam{
		ID:            s.newID(),
		Title:         draft.Title,
		Description:   strings.TrimSpace(draft.Description),
		Section:       draft.Section,
		PublishedAt:   s.clock.Now(),
		DueDate:       draft.DueDate,
		Type:          draft.Type,
		ProfessorID:   prof.ID,
		ProfessorName: prof.DisplayName(),
		Subject:       prof.Subject,
	}
	if draft.Type == model.ExamText {
		ex.Content = draft.Content
	} else {
		ex.FileRef, ex.FileName = draft.FileRef, draft.FileName
	}

	_, err = store.Mutate(ctx, s.kv, store.KeyExams, func(exams *[]model.Exam, _ bool) error {
		*exams = append(*exams, ex)
		return nil
	})
	if err != nil {
		return model.Exam{}, errors.Wrap(err, "publish exam")
	}
	metrics.ExamsPublished.WithLabelValues(string(ex.Section), string(ex.Type)).Inc()
	logger.Info.Printf("exam: %s published %s to %s", prof.ID, ex.ID, ex.Section)
	return ex, nil
}

// ForSection lists a section's exams, newest first.
func (s *Service) ForSection(ctx context.Context, section model.Section) ([]model.Exam, error) {
	if !section.Valid() {
		return nil, model.ErrUnknownSection
	}
	return s.list(ctx, func(e model.Exam) bool { return e.Section == section })
}

// ByProfessor lists the exams professorID published, newest first.
func (s *Service) ByProfessor(ctx context.Context, professorID string) ([]model.Exam, error) {
	return s.list(ctx, func(e model.Exam) bool { return e.ProfessorID == professorID })
}

func (s *Service) Get(ctx context.Context, id string) (model.Exam, error) {
	all, err := s.list(ctx, func(e model.Exam) bool { return e.ID == id })
	if err != nil {
		return model.Exam{}, err
	}
	if len(all) == 0 {
		return model.Exam{}, ErrNotFound
	}
	return all[0], nil
}

func (s *Service) list(ctx context.Context, keep func(model.Exam) bool) ([]model.Exam, error) {
	snap, err := store.Load[[]model.Exam](ctx, s.kv, store.KeyExams)
	if err != nil {
		return nil, errors.Wrap(err, "load exams")
	}
	out := make([]model.Exam, 0)
	for _, e := range snap.Value {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

// describe flattens validator errors into "field tag" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
