// Package conversation keeps the append-only message log and projects it into
// per-pair conversations.
package conversation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"campusroll/internal/clock"
	"campusroll/internal/ids"
	"campusroll/internal/metrics"
	"campusroll/internal/model"
	"campusroll/internal/store"
)

var (
	ErrInvalidParties = errors.New("a message needs one professor and one student")
	ErrEmptyContent   = errors.New("message content is empty")
)

// Directory resolves account ids.
type Directory interface {
	Get(ctx context.Context, id string) (model.Account, error)
}

// Thread summarizes one counterpart of a user.
type Thread struct {
	CounterpartID   string        `json:"counterpartId"`
	CounterpartName string        `json:"counterpartName"`
	Section         model.Section `json:"section"`
	Last            model.Message `json:"last"`
	Count           int           `json:"count"`
}

// Log is the conversation log stored at the messages key.
type Log struct {
	kv       store.Store
	accounts Directory
	clock    clock.Clock
	newID    func() string
}

type Option func(*Log)

func WithClock(c clock.Clock) Option { return func(l *Log) { l.clock = c } }

func WithIDs(fn func() string) Option { return func(l *Log) { l.newID = fn } }

func NewLog(kv store.Store, accounts Directory, opts ...Option) *Log {
	l := &Log{kv: kv, accounts: accounts, clock: clock.System, newID: ids.New}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Send appends a message from senderID to recipientID. The timestamp never
// goes backwards for a given sender.
func (l *Log) Send(ctx context.Context, senderID, recipientID, content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, ErrEmptyContent
	}
	sender, recipient, err := l.parties(ctx, senderID, recipientID)
	if err != nil {
		return model.Message{}, err
	}
	stu := sender
	if recipient.IsStudent() {
		stu = recipient
	}

	msg := model.Message{
		ID:            l.newID(),
		SenderID:      sender.ID,
		SenderRole:    sender.Role,
		SenderName:    sender.DisplayName(),
		RecipientID:   recipient.ID,
		RecipientName: recipient.DisplayName(),
		Section:       stu.Section,
		Content:       content,
	}
	_, err = store.Mutate(ctx, l.kv, store.KeyMessages, func(msgs *[]model.Message, _ bool) error {
		msg.Timestamp = nextTimestamp(l.clock.Now(), *msgs, sender.ID)
		*msgs = append(*msgs, msg)
		return nil
	})
	if err != nil {
		return model.Message{}, errors.Wrap(err, "send")
	}
	metrics.MessagesSent.WithLabelValues(string(msg.Section), string(sender.Role)).Inc()
	return msg, nil
}

// nextTimestamp clamps now to at least 1ms after the sender's last message.
func nextTimestamp(now time.Time, msgs []model.Message, senderID string) time.Time {
	var last time.Time
	for _, m := range msgs {
		if m.SenderID == senderID && m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}
	if !last.IsZero() && !now.After(last) {
		return last.Add(time.Millisecond)
	}
	return now
}

// parties resolves both ends and checks there is exactly one professor and
// one student with a valid section.
func (l *Log) parties(ctx context.Context, aID, bID string) (model.Account, model.Account, error) {
	if aID == "" || bID == "" || aID == bID {
		return model.Account{}, model.Account{}, ErrInvalidParties
	}
	a, err := l.resolve(ctx, aID)
	if err != nil {
		return model.Account{}, model.Account{}, err
	}
	b, err := l.resolve(ctx, bID)
	if err != nil {
		return model.Account{}, model.Account{}, err
	}
	if a.Role == b.Role {
		return model.Account{}, model.Account{}, ErrInvalidParties
	}
	stu := a
	if b.IsStudent() {
		stu = b
	}
	if !stu.Section.Valid() {
		return model.Account{}, model.Account{}, errors.Wrap(ErrInvalidParties, "student has no section")
	}
	return a, b, nil
}

func (l *Log) resolve(ctx context.Context, id string) (model.Account, error) {
	acc, err := l.accounts.Get(ctx, id)
	if errors.Is(err, store.ErrFailure) {
		return model.Account{}, err
	}
	if err != nil {
		return model.Account{}, errors.Wrapf(ErrInvalidParties, "%s: %v", id, err)
	}
	return acc, nil
}

// Conversation returns the messages between professorID and studentID in
// send order.
func (l *Log) Conversation(ctx context.Context, professorID, studentID string) ([]model.Message, error) {
	prof, stu, err := l.parties(ctx, professorID, studentID)
	if err != nil {
		return nil, err
	}
	if !prof.IsProfessor() || !stu.IsStudent() {
		return nil, errors.Wrap(ErrInvalidParties, "arguments are professor then student")
	}
	all, err := l.messages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Message, 0)
	for _, m := range all {
		if (m.SenderID == prof.ID && m.RecipientID == stu.ID) || (m.SenderID == stu.ID && m.RecipientID == prof.ID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out, nil
}

// Search matches needle, case-insensitively, against the counterpart's name
// and the content of every message userID can see. Newest first.
func (l *Log) Search(ctx context.Context, userID, needle string) ([]model.Message, error) {
	if _, err := l.accounts.Get(ctx, userID); err != nil {
		return nil, err
	}
	all, err := l.messages(ctx)
	if err != nil {
		return nil, err
	}
	needle = strings.ToLower(strings.TrimSpace(needle))
	out := make([]model.Message, 0)
	for _, m := range all {
		if !m.Involves(userID) {
			continue
		}
		_, name := m.Counterpart(userID)
		if needle == "" ||
			strings.Contains(strings.ToLower(name), needle) ||
			strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[j], out[i]) })
	return out, nil
}

// Threads lists userID's counterparts, most recent conversation first.
func (l *Log) Threads(ctx context.Context, userID string) ([]Thread, error) {
	if _, err := l.accounts.Get(ctx, userID); err != nil {
		return nil, err
	}
	all, err := l.messages(ctx)
	if err != nil {
		return nil, err
	}
	byCounterpart := map[string]*Thread{}
	for _, m := range all {
		if !m.Involves(userID) {
			continue
		}
		id, name := m.Counterpart(userID)
		th, ok := byCounterpart[id]
		if !ok {
			th = &Thread{CounterpartID: id, CounterpartName: name, Section: m.Section, Last: m}
			byCounterpart[id] = th
		}
		th.Count++
		if before(th.Last, m) {
			th.Last = m
		}
	}
	out := make([]Thread, 0, len(byCounterpart))
	for _, th := range byCounterpart {
		out = append(out, *th)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[j].Last, out[i].Last) })
	return out, nil
}

func (l *Log) messages(ctx context.Context) ([]model.Message, error) {
	snap, err := store.Load[[]model.Message](ctx, l.kv, store.KeyMessages)
	if err != nil {
		return nil, errors.Wrap(err, "load messages")
	}
	return snap.Value, nil
}

// before orders by timestamp, then id.
func before(a, b model.Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}
