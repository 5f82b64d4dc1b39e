package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"libraflow/internal/membership"
	"libraflow/internal/policy"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, userID uuid.UUID, subject, message string) error {
	args := m.Called(ctx, userID, subject, message)
	return args.Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, mail Mail) error {
	return m.Called(ctx, mail).Error(0)
}

type recipients map[uuid.UUID]string

func (r recipients) GetMember(_ context.Context, id uuid.UUID) (*membership.Member, error) {
	return &membership.Member{ID: id, Email: r[id], Role: policy.Student}, nil
}

func TestSubjectNotifiesInAttachOrder(t *testing.T) {
	s := NewSubject()
	var got []string
	s.Attach("first", ObserverFunc(func(context.Context, Event) { got = append(got, "first") }))
	id := s.Attach("second", ObserverFunc(func(context.Context, Event) { got = append(got, "second") }))
	s.Attach("third", ObserverFunc(func(context.Context, Event) { got = append(got, "third") }))

	s.Notify(context.Background(), Event{Type: ReservationAvailable})
	assert.Equal(t, []string{"first", "second", "third"}, got)

	got = nil
	s.Detach(id)
	s.Notify(context.Background(), Event{Type: ReservationAvailable})
	assert.Equal(t, []string{"first", "third"}, got)
}

func TestSubjectRecoversObserverPanic(t *testing.T) {
	s := NewSubject()
	var reached bool
	s.Attach("boom", ObserverFunc(func(context.Context, Event) { panic("boom") }))
	s.Attach("after", ObserverFunc(func(context.Context, Event) { reached = true }))

	assert.NotPanics(t, func() {
		s.Notify(context.Background(), Event{Type: ReservationExpired})
	})
	assert.True(t, reached)
}

func TestUserObserverRendersMessages(t *testing.T) {
	user := uuid.New()
	due := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

	sender := new(mockSender)
	sender.On("Send", mock.Anything, user, "Due date approaching",
		"Reminder: 'Dune' is due on 2025-03-15 09:00 UTC. Please return or renew it in time.").Return(nil).Once()
	sender.On("Send", mock.Anything, user, "Item returned, you're next",
		mock.MatchedBy(func(msg string) bool { return msg != "" })).Return(errors.New("smtp down")).Once()

	o := NewUserObserver(sender, nil)
	o.Update(context.Background(), Event{Type: DueDateApproaching, UserID: user, ItemTitle: "Dune", DueDate: &due})
	o.Update(context.Background(), Event{Type: BookReturnedNotifyNext, UserID: user, ItemTitle: "Dune"})
	o.Update(context.Background(), Event{Type: DueDateApproaching, UserID: user})

	sender.AssertExpectations(t)
}

func TestServiceStoresAndQueuesMail(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user := uuid.New()
	sent := make(chan Mail, 1)
	mailer := new(mockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent <- args.Get(1).(Mail)
	}).Return(nil)

	delivery := NewDelivery(mailer)
	go func() { _ = delivery.Run(ctx) }()

	store := NewMemoryStore()
	svc := NewService(store, recipients{user: "ada@example.org"}, WithDelivery(delivery))
	require.NoError(t, svc.Send(ctx, user, "Hello", "World"))

	select {
	case m := <-sent:
		assert.Equal(t, "ada@example.org", m.To)
		assert.Equal(t, "Hello", m.Subject)
	case <-time.After(time.Second):
		t.Fatal("mail not delivered")
	}

	rows, err := svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Read)

	require.NoError(t, svc.MarkRead(ctx, user, rows[0].ID))
	rows, err = svc.List(ctx, user)
	require.NoError(t, err)
	assert.True(t, rows[0].Read)
}

func TestDeliveryBreakerOpensAfterFailures(t *testing.T) {
	mailer := new(mockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("relay down"))

	d := NewDelivery(mailer)
	for i := 0; i < 8; i++ {
		d.send(context.Background(), Mail{To: "x@example.org"})
	}

	mailer.AssertNumberOfCalls(t, "Send", 5)
}

func TestDeliveryDropsWhenFull(t *testing.T) {
	d := NewDelivery(LogMailer{}, WithQueueSize(1))
	assert.True(t, d.Enqueue(Mail{To: "a"}))
	assert.False(t, d.Enqueue(Mail{To: "b"}))
}

func TestDeliveryZeroRateIsUnlimited(t *testing.T) {
	mailer := new(mockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	var d *Delivery
	require.NotPanics(t, func() {
		d = NewDelivery(mailer, WithRate(0, 0), WithQueueSize(0))
	})
	assert.Equal(t, 256, cap(d.outbox))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 20; i++ {
		require.NoError(t, d.limiter.Wait(ctx))
	}
}

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
}

func (f *fakeProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()
	promise(r, nil)
}

func TestKafkaObserverPublishesJSON(t *testing.T) {
	p := &fakeProducer{}
	item := uuid.New()
	NewKafkaObserver(p, "libraflow.notifications", nil).
		Update(context.Background(), Event{Type: ReservationExpired, UserID: uuid.New(), ItemID: item})

	require.Len(t, p.records, 1)
	r := p.records[0]
	assert.Equal(t, "libraflow.notifications", r.Topic)
	assert.Equal(t, item.String(), string(r.Key))
	assert.Contains(t, string(r.Value), `"type":"reservation_expired"`)
	assert.Equal(t, "event_type", r.Headers[0].Key)
}
