// Package scheduler fires deferred message deliveries at future
// wall-clock times, durably enough to survive a restart.
//
// A single actor goroutine owns the pending list exclusively: add,
// remove, and query requests arrive over a channel, and the same
// goroutine sleeps until the earliest expiry and performs delivery
// side-effects. No caller ever joins a worker thread, and a removal
// requested while a firing is in progress simply queues behind it.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/grvsrs/hostbot/pkg/logger"
)

var (
	// ErrNotPending is returned by Remove when any requested event is
	// not currently pending. The pending set is left unchanged.
	ErrNotPending = errors.New("scheduler: event is not pending")

	// ErrStopped is returned for operations on a stopped scheduler.
	ErrStopped = errors.New("scheduler: stopped")
)

// Messenger is the delivery collaborator. Resolution failures are
// non-fatal: the scheduler logs and moves on.
type Messenger interface {
	// UserMention resolves a user ID to the platform's mention syntax.
	UserMention(userID string) (string, bool)

	// SendDirectMessage sends text to a user as a direct message.
	SendDirectMessage(userID, text string) error

	// HasChannel reports whether a channel with the given name exists.
	HasChannel(name string) bool

	// SendChannelMessage sends text to a channel by name.
	SendChannelMessage(name, text string) error
}

// Store persists the full pending list. Implementations typically wrap
// the bot's config store under a plugin-data namespace key.
type Store interface {
	// Save replaces the persisted pending list.
	Save(records []Record) error

	// Load returns the persisted pending list. ok is false when nothing
	// has ever been persisted.
	Load() (records []Record, ok bool, err error)
}

type addRequest struct {
	event Event
	reply chan Event
}

type removeRequest struct {
	ids   []string
	reply chan error
}

type queryRequest struct {
	kind  Kind
	all   bool
	reply chan []Event
}

// Scheduler owns the time-ordered pending list and the one worker
// goroutine that waits on it.
type Scheduler struct {
	messenger Messenger
	store     Store

	addCh    chan addRequest
	removeCh chan removeRequest
	queryCh  chan queryRequest
	stopCh   chan struct{}
	doneCh   chan struct{}

	// onFired, when set, is called after each delivery on the scheduler
	// goroutine. It must not call back into the scheduler.
	onFired func(Event)

	// pending is owned by the run goroutine once Start is called.
	pending []Event

	loadCalls int
	started   bool
	stopOnce  sync.Once

	now func() time.Time
}

// New creates a scheduler. Call LoadOnce (optional) and then Start.
func New(m Messenger, store Store) *Scheduler {
	return &Scheduler{
		messenger: m,
		store:     store,
		addCh:     make(chan addRequest),
		removeCh:  make(chan removeRequest),
		queryCh:   make(chan queryRequest),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// SetFiredHook installs a callback invoked after each event fires. The
// hook runs on the scheduler goroutine and must not call back into the
// scheduler, or the worker deadlocks on its own request channel.
func (s *Scheduler) SetFiredHook(fn func(Event)) {
	s.onFired = fn
}

// LoadOnce restores the persisted pending list, discarding one-shot
// events whose expiry has already passed and re-arming recurring ones.
// Repeat calls are no-ops, so a plugin can be disabled and re-enabled
// without duplicating the pending set. Must be called before Start.
func (s *Scheduler) LoadOnce() error {
	s.loadCalls++
	if s.loadCalls > 1 {
		return nil
	}

	records, ok, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("load scheduled events: %w", err)
	}
	if !ok {
		return nil
	}

	nowUnix := s.now().Unix()
	discarded := 0
	for _, r := range records {
		ev, err := fromRecord(r)
		if err != nil {
			logger.WarnCF("scheduler", "dropping malformed persisted event", map[string]interface{}{
				"id": r.ID, "error": err.Error(),
			})
			continue
		}

		if ev.Kind == KindRecurringMessage {
			next, err := gronx.NextTick(ev.CronExpr, false)
			if err != nil {
				logger.WarnCF("scheduler", "dropping recurring event with bad cron expression", map[string]interface{}{
					"id": ev.ID, "cron": ev.CronExpr,
				})
				continue
			}
			ev.ExpiryTime = next.Unix()
		} else if ev.ExpiryTime <= nowUnix {
			discarded++
			continue
		}

		s.insert(ev)
	}

	logger.InfoCF("scheduler", "restored scheduled events", map[string]interface{}{
		"pending": len(s.pending), "discarded": discarded,
	})
	return nil
}

// Start launches the worker goroutine. Repeat calls are no-ops.
func (s *Scheduler) Start() {
	if s.started {
		return
	}
	s.started = true
	go s.run()
}

// Stop terminates the worker goroutine without firing anything. Safe to
// call more than once.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

// AddDirectMessage schedules a reminder DM for minutesFromNow minutes in
// the future. origin is the user's original wording of the delay, echoed
// back when the reminder fires.
func (s *Scheduler) AddDirectMessage(minutesFromNow float64, text, userID, origin string) (Event, error) {
	return s.add(Event{
		Kind:   KindDirectMessage,
		Text:   text,
		UserID: userID,
		Origin: origin,
	}, minutesFromNow)
}

// AddChannelMessage schedules a one-shot channel message.
func (s *Scheduler) AddChannelMessage(minutesFromNow float64, text, channelName string) (Event, error) {
	return s.add(Event{
		Kind:        KindChannelMessage,
		Text:        text,
		ChannelName: channelName,
	}, minutesFromNow)
}

// AddRecurring schedules a channel message on a cron expression. The
// event re-arms itself at the next cron tick after each firing.
func (s *Scheduler) AddRecurring(cronExpr, text, channelName string) (Event, error) {
	next, err := gronx.NextTick(cronExpr, false)
	if err != nil {
		return Event{}, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	ev := Event{
		ID:          uuid.NewString(),
		TimeSeconds: next.Unix() - s.now().Unix(),
		ExpiryTime:  next.Unix(),
		Kind:        KindRecurringMessage,
		Text:        text,
		ChannelName: channelName,
		CronExpr:    cronExpr,
	}
	return s.submit(ev)
}

func (s *Scheduler) add(ev Event, minutesFromNow float64) (Event, error) {
	seconds := int64(minutesFromNow * 60)
	ev.ID = uuid.NewString()
	ev.TimeSeconds = seconds
	ev.ExpiryTime = s.now().Unix() + seconds
	return s.submit(ev)
}

func (s *Scheduler) submit(ev Event) (Event, error) {
	req := addRequest{event: ev, reply: make(chan Event, 1)}
	select {
	case s.addCh <- req:
		return <-req.reply, nil
	case <-s.stopCh:
		return Event{}, ErrStopped
	}
}

// Remove cancels the given pending events. The operation is atomic
// across the set: if any event is not currently pending, nothing is
// removed and ErrNotPending is returned.
func (s *Scheduler) Remove(events ...Event) error {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}

	req := removeRequest{ids: ids, reply: make(chan error, 1)}
	select {
	case s.removeCh <- req:
		return <-req.reply
	case <-s.stopCh:
		return ErrStopped
	}
}

// EventsOfKind returns a snapshot of pending events of the given kind,
// sorted ascending by expiry.
func (s *Scheduler) EventsOfKind(kind Kind) []Event {
	req := queryRequest{kind: kind, reply: make(chan []Event, 1)}
	select {
	case s.queryCh <- req:
		return <-req.reply
	case <-s.stopCh:
		return nil
	}
}

// Events returns a snapshot of all pending events, sorted ascending by
// expiry.
func (s *Scheduler) Events() []Event {
	req := queryRequest{all: true, reply: make(chan []Event, 1)}
	select {
	case s.queryCh <- req:
		return <-req.reply
	case <-s.stopCh:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Worker loop — sole owner of s.pending after Start
// ---------------------------------------------------------------------------

func (s *Scheduler) run() {
	defer close(s.doneCh)

	for {
		s.fireDue()

		var timer *time.Timer
		var timerC <-chan time.Time
		if len(s.pending) > 0 {
			d := time.Until(time.Unix(s.pending[0].ExpiryTime, 0))
			if d <= 0 {
				// Already overdue after firing everything due: the
				// clock moved. Re-check in a second instead of
				// spinning.
				d = time.Second
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case req := <-s.addCh:
			s.insert(req.event)
			s.persist()
			req.reply <- req.event

		case req := <-s.removeCh:
			req.reply <- s.removeAll(req.ids)

		case req := <-s.queryCh:
			req.reply <- s.snapshot(req)

		case <-timerC:
			// Fall through; fireDue runs at the top of the loop.

		case <-s.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// insert keeps the pending list sorted ascending by expiry. Ties go to
// the earlier insertion.
func (s *Scheduler) insert(ev Event) {
	idx := len(s.pending)
	for i := range s.pending {
		if s.pending[i].ExpiryTime > ev.ExpiryTime {
			idx = i
			break
		}
	}
	s.pending = append(s.pending, Event{})
	copy(s.pending[idx+1:], s.pending[idx:])
	s.pending[idx] = ev
}

func (s *Scheduler) removeAll(ids []string) error {
	index := make(map[string]int, len(s.pending))
	for i, ev := range s.pending {
		index[ev.ID] = i
	}
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			return ErrNotPending
		}
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := s.pending[:0]
	for _, ev := range s.pending {
		if !drop[ev.ID] {
			kept = append(kept, ev)
		}
	}
	s.pending = kept
	s.persist()
	return nil
}

func (s *Scheduler) snapshot(req queryRequest) []Event {
	var out []Event
	for _, ev := range s.pending {
		if req.all || ev.Kind == req.kind {
			out = append(out, ev)
		}
	}
	return out
}

// fireDue pops and delivers every event whose expiry has passed, in
// ascending expiry order. The updated pending list is persisted once per
// fired event, before its delivery side-effect runs, so a crash
// mid-batch loses at most the already-fired events.
func (s *Scheduler) fireDue() {
	for len(s.pending) > 0 && s.pending[0].ExpiryTime <= s.now().Unix() {
		ev := s.pending[0]
		s.pending = s.pending[1:]

		if ev.Kind == KindRecurringMessage {
			if next, err := gronx.NextTick(ev.CronExpr, false); err == nil {
				rearmed := ev
				rearmed.ExpiryTime = next.Unix()
				s.insert(rearmed)
			} else {
				logger.ErrorCF("scheduler", "recurring event lost its cron expression", map[string]interface{}{
					"id": ev.ID, "cron": ev.CronExpr,
				})
			}
		}

		s.persist()
		s.deliver(ev)

		if s.onFired != nil {
			s.onFired(ev)
		}
	}
}

func (s *Scheduler) deliver(ev Event) {
	switch ev.Kind {
	case KindDirectMessage:
		mention, ok := s.messenger.UserMention(ev.UserID)
		if !ok {
			logger.ErrorCF("scheduler", "reminder recipient not found", map[string]interface{}{
				"user": ev.UserID,
			})
			return
		}
		msg := fmt.Sprintf("Hey %s, don't forget %s!\n(You asked me to remind you about this %s ago)",
			mention, ev.Text, ev.Origin)
		if err := s.messenger.SendDirectMessage(ev.UserID, msg); err != nil {
			logger.ErrorCF("scheduler", "reminder delivery failed", map[string]interface{}{
				"user": ev.UserID, "error": err.Error(),
			})
		}

	case KindChannelMessage, KindRecurringMessage:
		if !s.messenger.HasChannel(ev.ChannelName) {
			logger.ErrorCF("scheduler", "scheduled message channel not found", map[string]interface{}{
				"channel": ev.ChannelName,
			})
			return
		}
		if err := s.messenger.SendChannelMessage(ev.ChannelName, ev.Text); err != nil {
			logger.ErrorCF("scheduler", "scheduled message delivery failed", map[string]interface{}{
				"channel": ev.ChannelName, "error": err.Error(),
			})
		}
	}
}

func (s *Scheduler) persist() {
	records := make([]Record, len(s.pending))
	for i, ev := range s.pending {
		records[i] = ev.toRecord()
	}
	if err := s.store.Save(records); err != nil {
		logger.ErrorCF("scheduler", "persist pending events failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
