package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/internal/dispatch"
	"github.com/angelmondragon/porter-backend/internal/email"
	"github.com/angelmondragon/porter-backend/internal/rewards"
	"github.com/angelmondragon/porter-backend/pkg/db"
	"github.com/angelmondragon/porter-backend/pkg/db/dbtest"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/outbox"
	"github.com/angelmondragon/porter-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/porter-backend/pkg/pagination"
)

type notifyCall struct {
	userID    uuid.UUID
	eventType enums.NotificationType
	payload   map[string]any
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, eventType enums.NotificationType, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{userID: userID, eventType: eventType, payload: payload})
	return n.err
}

func (n *recordingNotifier) snapshot() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}

type sentEmail struct {
	kind  string
	to    email.Recipient
	order email.OrderSummary
}

type recordingEmailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (e *recordingEmailer) record(kind string, to email.Recipient, order email.OrderSummary) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, sentEmail{kind: kind, to: to, order: order})
	return e.err
}

func (e *recordingEmailer) SendWelcome(_ context.Context, to email.Recipient) error {
	return e.record("welcome", to, email.OrderSummary{})
}

func (e *recordingEmailer) SendOrderConfirmation(_ context.Context, to email.Recipient, order email.OrderSummary) error {
	return e.record("confirmation", to, order)
}

func (e *recordingEmailer) SendOrderStatusUpdate(_ context.Context, to email.Recipient, order email.OrderSummary) error {
	return e.record("status", to, order)
}

func (e *recordingEmailer) snapshot() []sentEmail {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sentEmail(nil), e.sent...)
}

type stubAwarder struct {
	awardFn func(ctx context.Context, userID uuid.UUID, amount int64) (*rewards.Award, error)
}

func (s stubAwarder) AwardXP(ctx context.Context, userID uuid.UUID, amount int64) (*rewards.Award, error) {
	return s.awardFn(ctx, userID, amount)
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

type fixture struct {
	conn       *gorm.DB
	svc        Service
	dispatcher *dispatch.Dispatcher
	notifier   *recordingNotifier
	emailer    *recordingEmailer
	owner      models.User
	driver     models.User
	admin      models.User

	clockMu sync.Mutex
	now     time.Time
}

func (f *fixture) tick() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.now = f.now.Add(time.Second)
	return f.now
}

type fixtureOption func(*ServiceParams)

func withRewards(awarder xpAwarder) fixtureOption {
	return func(p *ServiceParams) { p.Rewards = awarder }
}

func withOutbox(emitter outbox.Emitter) fixtureOption {
	return func(p *ServiceParams) { p.Outbox = emitter }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		conn:       conn,
		dispatcher: dispatch.New(dispatch.Params{Timeout: 5 * time.Second}),
		notifier:   &recordingNotifier{},
		emailer:    &recordingEmailer{},
		owner:      seedUser(t, conn, enums.RoleUser),
		driver:     seedUser(t, conn, enums.RoleDriver),
		admin:      seedUser(t, conn, enums.RoleAdmin),
		now:        time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	}
	ledger, err := rewards.NewLedger(rewards.LedgerParams{DB: db.Wrap(conn), Notifier: f.notifier})
	require.NoError(t, err)

	params := ServiceParams{
		DB:         db.Wrap(conn),
		Repository: NewRepository(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
		Dispatcher: f.dispatcher,
		Rewards:    ledger,
		Notifier:   f.notifier,
		Emailer:    f.emailer,
		DeliveryXP: 50,
		Now:        f.tick,
	}
	for _, opt := range opts {
		opt(&params)
	}
	f.svc, err = NewService(params)
	require.NoError(t, err)
	return f
}

func (f *fixture) ownerActor() Actor  { return Actor{UserID: f.owner.ID, Role: enums.RoleUser} }
func (f *fixture) adminActor() Actor  { return Actor{UserID: f.admin.ID, Role: enums.RoleAdmin} }
func (f *fixture) driverActor() Actor { return Actor{UserID: f.driver.ID, Role: enums.RoleDriver} }

func (f *fixture) create(t *testing.T) *OrderDTO {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), f.ownerActor(), validInput())
	require.NoError(t, err)
	f.dispatcher.Wait()
	return order
}

func (f *fixture) reloadUser(t *testing.T, id uuid.UUID) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, f.conn.First(&user, "id = ?", id).Error)
	return user
}

func (f *fixture) outboxEvents(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", eventType).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, pkgerrors.CodeOf(err), "unexpected error: %v", err)
}

func TestCreateOrderPersistsPendingOrder(t *testing.T) {
	f := newFixture(t)

	order := f.create(t)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, f.owner.ID, order.UserID)
	assert.Equal(t, "17.50", order.Cost.StringFixed(2))
	assert.Equal(t, time.Date(2026, 11, 4, 0, 0, 0, 0, time.UTC), order.EstimatedDelivery)
	require.Len(t, order.Timeline, 1)
	assert.Equal(t, enums.OrderStatusPending, order.Timeline[0].Status)
	assert.Equal(t, 1, order.Timeline[0].Seq)

	events := f.outboxEvents(t, enums.EventOrderCreated)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].AggregateID)

	sent := f.emailer.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "confirmation", sent[0].kind)
	assert.Equal(t, f.owner.Email, sent[0].to.Email)
	assert.Equal(t, "Ada Okafor", sent[0].to.FullName)
	assert.Equal(t, order.ID, sent[0].order.ID)
}

func TestCreateOrderValidationWritesNothing(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.PickupContact = "123"
	in.Weight = decimal.Zero

	_, err := f.svc.CreateOrder(context.Background(), f.ownerActor(), in)
	requireCode(t, err, pkgerrors.CodeValidation)
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Len(t, details, 2)

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	f.dispatcher.Wait()
	assert.Empty(t, f.emailer.snapshot())
}

func TestCreateOrderRollsBackWhenOutboxFails(t *testing.T) {
	f := newFixture(t, withOutbox(failingEmitter{}))

	_, err := f.svc.CreateOrder(context.Background(), f.ownerActor(), validInput())
	requireCode(t, err, pkgerrors.CodeDependency)

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateStatusDeliveredFullLifecycle(t *testing.T) {
	f := newFixture(t)
	order := f.create(t)
	ctx := context.Background()

	_, err := f.svc.AssignDriver(ctx, order.ID, f.driver.ID, f.adminActor())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, order.ID, "in_transit", f.adminActor())
	require.NoError(t, err)
	delivered, err := f.svc.UpdateStatus(ctx, order.ID, "delivered", f.adminActor())
	require.NoError(t, err)
	f.dispatcher.Wait()

	assert.Equal(t, enums.OrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
	require.Len(t, delivered.Timeline, 3)
	for i, entry := range delivered.Timeline {
		assert.Equal(t, i+1, entry.Seq)
	}
	assert.Equal(t, enums.OrderStatusDelivered, delivered.Timeline[2].Status)

	owner := f.reloadUser(t, f.owner.ID)
	assert.Equal(t, int64(50), owner.XP)
	assert.Equal(t, 1, owner.CompletedOrders)
	driver := f.reloadUser(t, f.driver.ID)
	assert.Equal(t, 1, driver.CompletedOrders)
	assert.Zero(t, driver.XP)

	var statusNotes []notifyCall
	for _, call := range f.notifier.snapshot() {
		if call.eventType == enums.NotificationOrderStatusChange {
			statusNotes = append(statusNotes, call)
		}
	}
	require.Len(t, statusNotes, 1)
	assert.Equal(t, f.owner.ID, statusNotes[0].userID)
	assert.Equal(t, "delivered", statusNotes[0].payload["status"])
	assert.Equal(t, order.ID.String(), statusNotes[0].payload["orderId"])

	var statusEmails int
	for _, sent := range f.emailer.snapshot() {
		if sent.kind == "status" {
			statusEmails++
			assert.Equal(t, f.owner.Email, sent.to.Email)
		}
	}
	assert.Equal(t, 2, statusEmails)

	events := f.outboxEvents(t, enums.EventOrderStatusChanged)
	require.Len(t, events, 2)
	var payload payloads.OrderStatusChangedEvent
	for _, event := range events {
		var env outbox.PayloadEnvelope
		require.NoError(t, json.Unmarshal(event.Payload, &env))
		var candidate payloads.OrderStatusChangedEvent
		require.NoError(t, json.Unmarshal(env.Data, &candidate))
		if candidate.To == enums.OrderStatusDelivered {
			payload = candidate
		}
	}
	assert.Equal(t, enums.OrderStatusInTransit, payload.From)
	assert.Equal(t, enums.OrderStatusDelivered, payload.To)
	assert.Equal(t, 3, payload.Seq)
	require.NotNil(t, payload.DriverID)
	assert.Equal(t, f.driver.ID, *payload.DriverID)
}

func TestUpdateStatusInTransitSendsOnlyEmail(t *testing.T) {
	f := newFixture(t)
	order := f.create(t)

	_, err := f.svc.UpdateStatus(context.Background(), order.ID, "in_transit", f.adminActor())
	require.NoError(t, err)
	f.dispatcher.Wait()

	assert.Empty(t, f.notifier.snapshot())
	assert.Zero(t, f.reloadUser(t, f.owner.ID).XP)
	sent := f.emailer.snapshot()
	require.Len(t, sent, 2)
	assert.Equal(t, "status", sent[1].kind)
	assert.Equal(t, enums.OrderStatusInTransit, sent[1].order.Status)
}

func TestUpdateStatusErrors(t *testing.T) {
	f := newFixture(t)
	order := f.create(t)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, order.ID, "in_transit", f.ownerActor())
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.UpdateStatus(ctx, order.ID, "lost", f.adminActor())
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), "in_transit", f.adminActor())
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.UpdateStatus(ctx, order.ID, "delivered", f.adminActor())
	requireCode(t, err, pkgerrors.CodeStateConflict)

	got, err := f.svc.GetOrder(ctx, order.ID, f.ownerActor())
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
	assert.Len(t, got.Timeline, 1)
}

func TestUpdateStatusTerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	order := f.create(t)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, order.ID, "cancelled", f.adminActor())
	require.NoError(t, err)

	for _, status := range []string{"pending", "in_transit", "delivered", "cancelled"} {
		_, err := f.svc.UpdateStatus(ctx, order.ID, status, f.adminActor())
		requireCode(t, err, pkgerrors.CodeStateConflict)
	}
	f.dispatcher.Wait()
}

func TestUpdateStatusSurvivesFailingSideEffects(t *testing.T) {
	awarder := stubAwarder{awardFn: func(context.Context, uuid.UUID, int64) (*rewards.Award, error) {
		return nil, errors.New("ledger down")
	}}
	f := newFixture(t, withRewards(awarder))
	f.notifier.err = errors.New("notifications down")
	f.emailer.err = errors.New("smtp down")
	order := f.create(t)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, order.ID, "in_transit", f.adminActor())
	require.NoError(t, err)
	delivered, err := f.svc.UpdateStatus(ctx, order.ID, "delivered", f.adminActor())
	require.NoError(t, err)
	f.dispatcher.Wait()

	assert.Equal(t, enums.OrderStatusDelivered, delivered.Status)
	assert.Equal(t, 1, f.reloadUser(t, f.owner.ID).CompletedOrders)

	got, err := f.svc.GetOrder(ctx, order.ID, f.ownerActor())
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, got.Status)
	require.Len(t, got.Timeline, 3)
	deliveredEntries := 0
	for _, entry := range got.Timeline {
		if entry.Status == enums.OrderStatusDelivered {
			deliveredEntries++
		}
	}
	assert.Equal(t, 1, deliveredEntries)
	assert.Equal(t, enums.OrderStatusDelivered, got.Timeline[2].Status)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	order := f.create(t)

	cancelled, err := f.svc.CancelOrder(context.Background(), order.ID, f.ownerActor())
	require.NoError(t, err)
	f.dispatcher.Wait()

	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.Len(t, cancelled.Timeline, 2)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Timeline[1].Status)
	assert.Len(t, f.outboxEvents(t, enums.EventOrderCanceled), 1)

	calls := f.notifier.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, enums.NotificationOrderStatusChange, calls[0].eventType)
	assert.Equal(t, "cancelled", calls[0].payload["status"])
}

func TestCancelOrderRejectsWithoutChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	_, err := f.svc.CancelOrder(ctx, order.ID, Actor{UserID: f.driver.ID, Role: enums.RoleUser})
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "order not found or cannot be cancelled", pkgerrors.As(err).Message())

	_, err = f.svc.CancelOrder(ctx, uuid.New(), f.ownerActor())
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.UpdateStatus(ctx, order.ID, "in_transit", f.adminActor())
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(ctx, order.ID, f.ownerActor())
	requireCode(t, err, pkgerrors.CodeNotFound)
	f.dispatcher.Wait()

	got, err := f.svc.GetOrder(ctx, order.ID, f.ownerActor())
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusInTransit, got.Status)
	assert.Empty(t, f.outboxEvents(t, enums.EventOrderCanceled))
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	err := f.svc.DeleteOrder(ctx, order.ID, f.driverActor())
	requireCode(t, err, pkgerrors.CodeForbidden)

	require.NoError(t, f.svc.DeleteOrder(ctx, order.ID, f.adminActor()))
	assert.Len(t, f.outboxEvents(t, enums.EventOrderDeleted), 1)

	_, err = f.svc.GetOrder(ctx, order.ID, f.ownerActor())
	requireCode(t, err, pkgerrors.CodeNotFound)
	err = f.svc.DeleteOrder(ctx, order.ID, f.ownerActor())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetOrderAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	_, err := f.svc.GetOrder(ctx, order.ID, f.driverActor())
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.AssignDriver(ctx, order.ID, f.driver.ID, f.adminActor())
	require.NoError(t, err)
	got, err := f.svc.GetOrder(ctx, order.ID, f.driverActor())
	require.NoError(t, err)
	require.NotNil(t, got.DriverID)
	assert.Equal(t, f.driver.ID, *got.DriverID)

	_, err = f.svc.GetOrder(ctx, order.ID, f.adminActor())
	require.NoError(t, err)
}

func TestAssignDriverRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	_, err := f.svc.AssignDriver(ctx, order.ID, f.driver.ID, f.ownerActor())
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.AssignDriver(ctx, order.ID, f.owner.ID, f.adminActor())
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.AssignDriver(ctx, order.ID, uuid.New(), f.adminActor())
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.CancelOrder(ctx, order.ID, f.ownerActor())
	require.NoError(t, err)
	_, err = f.svc.AssignDriver(ctx, order.ID, f.driver.ID, f.adminActor())
	requireCode(t, err, pkgerrors.CodeStateConflict)
	f.dispatcher.Wait()
}

func TestListOrdersScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t)
	second := f.create(t)
	_, err := f.svc.AssignDriver(ctx, first.ID, f.driver.ID, f.adminActor())
	require.NoError(t, err)

	page, err := f.svc.ListOrders(ctx, f.ownerActor(), pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, second.ID, page.Orders[0].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = f.svc.ListOrders(ctx, f.ownerActor(), pagination.Params{Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, first.ID, page.Orders[0].ID)
	assert.Empty(t, page.NextCursor)

	page, err = f.svc.ListOrders(ctx, f.driverActor(), pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, first.ID, page.Orders[0].ID)

	_, err = f.svc.ListOrders(ctx, f.ownerActor(), pagination.Params{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestListAllOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t)
	f.create(t)
	_, err := f.svc.UpdateStatus(ctx, first.ID, "in_transit", f.adminActor())
	require.NoError(t, err)
	f.dispatcher.Wait()

	_, err = f.svc.ListAllOrders(ctx, f.ownerActor(), ListAllParams{})
	requireCode(t, err, pkgerrors.CodeForbidden)

	all, err := f.svc.ListAllOrders(ctx, f.adminActor(), ListAllParams{})
	require.NoError(t, err)
	assert.Len(t, all.Orders, 2)

	inTransit, err := f.svc.ListAllOrders(ctx, f.adminActor(), ListAllParams{Status: "in_transit"})
	require.NoError(t, err)
	require.Len(t, inTransit.Orders, 1)
	assert.Equal(t, first.ID, inTransit.Orders[0].ID)

	_, err = f.svc.ListAllOrders(ctx, f.adminActor(), ListAllParams{Status: "lost"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t)
	f.create(t)
	_, err := f.svc.CancelOrder(ctx, first.ID, f.ownerActor())
	require.NoError(t, err)
	f.dispatcher.Wait()

	stats, err := f.svc.Stats(ctx, f.ownerActor())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, "35.00", stats.TotalCost.StringFixed(2))
	require.Len(t, stats.ByStatus, 2)
	assert.Equal(t, enums.OrderStatusCancelled, stats.ByStatus[0].Status)
	assert.Equal(t, int64(1), stats.ByStatus[0].Count)
	assert.Equal(t, enums.OrderStatusPending, stats.ByStatus[1].Status)
}

func TestConcurrentDeliveriesKeepCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 4
	ids := make([]uuid.UUID, 0, n)
	for range n {
		order := f.create(t)
		_, err := f.svc.UpdateStatus(ctx, order.ID, "in_transit", f.adminActor())
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Go(func() {
			_, err := f.svc.UpdateStatus(ctx, id, "delivered", f.adminActor())
			assert.NoError(t, err)
		})
	}
	wg.Wait()
	f.dispatcher.Wait()

	owner := f.reloadUser(t, f.owner.ID)
	assert.Equal(t, n, owner.CompletedOrders)
	assert.Equal(t, int64(n*50), owner.XP)
	assert.Equal(t, 2, owner.Level)
}
