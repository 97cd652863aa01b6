package datastore

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreybb/dropoff/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DSN")
	if dsn == "" {
		t.Skip("TEST_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	if err := db.Ping(); err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func insertOrder(t *testing.T, db *sql.DB, email string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO orders (id, customer_name, customer_email, address, city, state, zip, delivery_address, status)
		VALUES ($1, 'Ada', $2, '12 Main St', 'Springfield', 'IL', '62704', 'old address', 'in_transit')`,
		id, email)
	require.NoError(t, err)
	return id
}

func TestOrderRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(db)
	id := insertOrder(t, db, "a@b.com")

	order, err := repo.GetOrderByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "12 Main St, Springfield, IL, 62704", order.DeliveryAddress())
	assert.Equal(t, models.OrderStatusInTransit, order.Status)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.UpdateOrderStatus(ctx, id, models.OrderStatusDelivered, now))
	order, err = repo.GetOrderByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)

	_, err = repo.GetOrderByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.UpdateOrderStatus(ctx, uuid.NewString(), models.OrderStatusDelivered, now), ErrNotFound)
}

func TestPODRepository_CreateAndReconcileList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pods := NewPODRepository(db)
	orderID := insertOrder(t, db, "a@b.com")

	pod := &models.ProofOfDelivery{OrderID: orderID, DriverID: "driver-1", DeliveredAt: time.Now().UTC()}
	id, err := pods.CreatePOD(ctx, pod)
	require.NoError(t, err)
	assert.Equal(t, pod.ID, id)

	got, err := pods.GetPODByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.PhotoURL)
	assert.Nil(t, got.SignatureURL)
	assert.Nil(t, got.Notes)

	pending, err := pods.ListUnreconciledPODs(ctx, 10000)
	require.NoError(t, err)
	var found bool
	for _, p := range pending {
		found = found || p.ID == id
	}
	assert.True(t, found, "POD of an undelivered order is listed")

	_, err = pods.GetPODByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	cancelledOrder := insertOrder(t, db, "c@d.com")
	_, err = db.Exec(`UPDATE orders SET status = 'cancelled' WHERE id = $1`, cancelledOrder)
	require.NoError(t, err)
	cancelledPOD, err := pods.CreatePOD(ctx, &models.ProofOfDelivery{
		OrderID: cancelledOrder, DriverID: "driver-1", DeliveredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	pending, err = pods.ListUnreconciledPODs(ctx, 10000)
	require.NoError(t, err)
	for _, p := range pending {
		assert.NotEqual(t, cancelledPOD, p.ID, "PODs of cancelled orders are not reconciled")
	}
}

func TestEmailReceiptRepository_ReservationIsExclusive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	orderID := insertOrder(t, db, "a@b.com")
	podID, err := NewPODRepository(db).CreatePOD(ctx, &models.ProofOfDelivery{
		OrderID: orderID, DriverID: "driver-1", DeliveredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	receipts := NewEmailReceiptRepository(db)

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := receipts.CreateEmailReceipt(ctx, &models.EmailReceipt{PODID: podID, OrderID: orderID, ToEmail: "a@b.com"})
			if err == nil {
				won.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrReceiptExists)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won.Load())

	// An unsent reservation can be released.
	require.NoError(t, receipts.DeleteEmailReceipt(ctx, podID))
	exists, err := receipts.EmailReceiptExists(ctx, podID)
	require.NoError(t, err)
	assert.False(t, exists)

	// A sent receipt survives release.
	require.NoError(t, receipts.CreateEmailReceipt(ctx, &models.EmailReceipt{PODID: podID, OrderID: orderID, ToEmail: "a@b.com"}))
	require.NoError(t, receipts.MarkEmailReceiptSent(ctx, podID, "msg-1", time.Now().UTC()))
	require.NoError(t, receipts.DeleteEmailReceipt(ctx, podID))

	receipt, err := receipts.GetEmailReceiptByPODID(ctx, podID)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", receipt.ProviderMessageID)
	require.NotNil(t, receipt.SentAt)
}

func TestEmailReceiptRepository_ReleaseStaleReservations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pods := NewPODRepository(db)
	receipts := NewEmailReceiptRepository(db)

	reserve := func(reservedAt time.Time, sent bool) string {
		orderID := insertOrder(t, db, "a@b.com")
		podID, err := pods.CreatePOD(ctx, &models.ProofOfDelivery{
			OrderID: orderID, DriverID: "driver-1", DeliveredAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		require.NoError(t, receipts.CreateEmailReceipt(ctx, &models.EmailReceipt{
			PODID: podID, OrderID: orderID, ToEmail: "a@b.com", ReservedAt: reservedAt,
		}))
		if sent {
			require.NoError(t, receipts.MarkEmailReceiptSent(ctx, podID, "msg-1", reservedAt))
		}
		return podID
	}

	now := time.Now().UTC()
	stale := reserve(now.Add(-time.Hour), false)
	fresh := reserve(now, false)
	sent := reserve(now.Add(-time.Hour), true)

	_, err := receipts.ReleaseStaleReservations(ctx, now.Add(-15*time.Minute))
	require.NoError(t, err)

	for podID, want := range map[string]bool{stale: false, fresh: true, sent: true} {
		exists, err := receipts.EmailReceiptExists(ctx, podID)
		require.NoError(t, err)
		assert.Equal(t, want, exists, podID)
	}
}
