package lifecycle_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brokerline/broker-be/internal/auth"
	"github.com/brokerline/broker-be/internal/lifecycle"
	"github.com/brokerline/broker-be/internal/models"
	"github.com/brokerline/broker-be/internal/storage/memory"
)

var (
	owner    = auth.Identity{UserID: 1, Role: models.RoleUser, Name: "Alice"}
	stranger = auth.Identity{UserID: 2, Role: models.RoleUser, Name: "Bob"}
	admin    = auth.Identity{UserID: 3, Role: models.RoleAdmin, Name: "Admin"}
)

func newEngine(t *testing.T) (*lifecycle.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return lifecycle.NewEngine(store, store), store
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func statusPtr(s models.RequestStatus) *models.RequestStatus { return &s }

func TestCreateStartsPending(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Fix bug", "crash on save")
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, req.Status)
	require.Equal(t, owner.UserID, req.OwnerID)
	require.Nil(t, req.Price)
	require.Nil(t, req.DeliveryTime)
}

func TestCreateRequiresTitle(t *testing.T) {
	engine, _ := newEngine(t)
	_, err := engine.Create(context.Background(), owner, "   ", "whatever")
	require.ErrorIs(t, err, lifecycle.ErrTitleRequired)
}

func TestNegotiationHappyPath(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Fix bug", "crash on save")
	require.NoError(t, err)

	req, err = engine.Update(ctx, admin, req.ID, lifecycle.Patch{
		Status:       statusPtr(models.StatusPriceSet),
		Price:        floatPtr(50),
		DeliveryTime: strPtr("3 days"),
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusPriceSet, req.Status)
	require.NotNil(t, req.Price)
	require.Equal(t, 50.0, *req.Price)
	require.NotNil(t, req.DeliveryTime)
	require.Equal(t, "3 days", *req.DeliveryTime)

	req, err = engine.Update(ctx, owner, req.ID, lifecycle.Patch{
		Status: statusPtr(models.StatusUserAccepted),
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusUserAccepted, req.Status)

	payment, err := store.CreatePayment(ctx, req.ID, 50, "card")
	require.NoError(t, err)
	_, err = store.ConfirmPayment(ctx, payment.ID)
	require.NoError(t, err)

	req, err = engine.Update(ctx, admin, req.ID, lifecycle.Patch{
		Status: statusPtr(models.StatusPaid),
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusPaid, req.Status)

	// Owner never changed across the whole negotiation.
	require.Equal(t, owner.UserID, req.OwnerID)
}

func TestPaidRequiresConfirmedPayment(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Fix bug", "")
	require.NoError(t, err)
	_, err = engine.Update(ctx, admin, req.ID, lifecycle.Patch{
		Status: statusPtr(models.StatusPriceSet), Price: floatPtr(50), DeliveryTime: strPtr("3 days"),
	})
	require.NoError(t, err)
	_, err = engine.Update(ctx, owner, req.ID, lifecycle.Patch{Status: statusPtr(models.StatusUserAccepted)})
	require.NoError(t, err)

	// A pending payment is not enough.
	_, err = store.CreatePayment(ctx, req.ID, 50, "card")
	require.NoError(t, err)
	_, err = engine.Update(ctx, admin, req.ID, lifecycle.Patch{Status: statusPtr(models.StatusPaid)})
	require.ErrorIs(t, err, lifecycle.ErrPaymentNotConfirmed)
}

func TestTransitionTable(t *testing.T) {
	type step struct {
		actor auth.Identity
		patch lifecycle.Patch
	}
	pricedPatch := lifecycle.Patch{
		Status: statusPtr(models.StatusPriceSet), Price: floatPtr(50), DeliveryTime: strPtr("3 days"),
	}
	// setup advances a fresh request to the named status via legal steps.
	setup := map[models.RequestStatus][]step{
		models.StatusPending: {},
		models.StatusPriceSet: {
			{admin, pricedPatch},
		},
		models.StatusUserAccepted: {
			{admin, pricedPatch},
			{owner, lifecycle.Patch{Status: statusPtr(models.StatusUserAccepted)}},
		},
	}

	cases := []struct {
		name    string
		from    models.RequestStatus
		actor   auth.Identity
		patch   lifecycle.Patch
		wantErr error
	}{
		{"skip to accepted", models.StatusPending, owner, lifecycle.Patch{Status: statusPtr(models.StatusUserAccepted)}, lifecycle.ErrInvalidTransition},
		{"skip to paid", models.StatusPending, admin, lifecycle.Patch{Status: statusPtr(models.StatusPaid)}, lifecycle.ErrInvalidTransition},
		{"price set by owner", models.StatusPending, owner, lifecycle.Patch{Status: statusPtr(models.StatusPriceSet), Price: floatPtr(50), DeliveryTime: strPtr("3 days")}, lifecycle.ErrForbidden},
		{"price set without price", models.StatusPending, admin, lifecycle.Patch{Status: statusPtr(models.StatusPriceSet), DeliveryTime: strPtr("3 days")}, lifecycle.ErrInvalidTransition},
		{"price set without delivery", models.StatusPending, admin, lifecycle.Patch{Status: statusPtr(models.StatusPriceSet), Price: floatPtr(50)}, lifecycle.ErrInvalidTransition},
		{"accept by admin", models.StatusPriceSet, admin, lifecycle.Patch{Status: statusPtr(models.StatusUserAccepted)}, lifecycle.ErrForbidden},
		{"paid from price_set", models.StatusPriceSet, admin, lifecycle.Patch{Status: statusPtr(models.StatusPaid)}, lifecycle.ErrInvalidTransition},
		{"reverse to pending", models.StatusPriceSet, admin, lifecycle.Patch{Status: statusPtr(models.StatusPending)}, lifecycle.ErrInvalidTransition},
		{"paid by owner", models.StatusUserAccepted, owner, lifecycle.Patch{Status: statusPtr(models.StatusPaid)}, lifecycle.ErrForbidden},
		{"unknown status", models.StatusPending, admin, lifecycle.Patch{Status: statusPtr(models.RequestStatus("done"))}, lifecycle.ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, _ := newEngine(t)
			ctx := context.Background()
			req, err := engine.Create(ctx, owner, "Fix bug", "")
			require.NoError(t, err)
			for _, s := range setup[tc.from] {
				req, err = engine.Update(ctx, s.actor, req.ID, s.patch)
				require.NoError(t, err)
			}
			require.Equal(t, tc.from, req.Status)

			_, err = engine.Update(ctx, tc.actor, req.ID, tc.patch)
			require.ErrorIs(t, err, tc.wantErr)

			// The failed call left the request untouched.
			after, err := engine.Get(ctx, admin, req.ID)
			require.NoError(t, err)
			require.Equal(t, req, after)
		})
	}
}

func TestStrangerForbidden(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Fix bug", "crash on save")
	require.NoError(t, err)

	_, err = engine.Update(ctx, stranger, req.ID, lifecycle.Patch{Title: strPtr("hijacked")})
	require.ErrorIs(t, err, lifecycle.ErrForbidden)

	err = engine.Delete(ctx, stranger, req.ID)
	require.ErrorIs(t, err, lifecycle.ErrForbidden)

	_, err = engine.Get(ctx, stranger, req.ID)
	require.ErrorIs(t, err, lifecycle.ErrForbidden)

	after, err := engine.Get(ctx, owner, req.ID)
	require.NoError(t, err)
	require.Equal(t, "Fix bug", after.Title)
}

func TestPatchMergeKeepsAbsentFields(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Fix bug", "crash on save")
	require.NoError(t, err)

	req, err = engine.Update(ctx, owner, req.ID, lifecycle.Patch{Title: strPtr("Fix crash")})
	require.NoError(t, err)
	require.Equal(t, "Fix crash", req.Title)
	require.Equal(t, "crash on save", req.Description)

	// An explicitly empty description is applied, not treated as absent.
	req, err = engine.Update(ctx, owner, req.ID, lifecycle.Patch{Description: strPtr("")})
	require.NoError(t, err)
	require.Equal(t, "Fix crash", req.Title)
	require.Equal(t, "", req.Description)
}

func TestZeroPriceIsExpressible(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Pro bono", "")
	require.NoError(t, err)

	req, err = engine.Update(ctx, admin, req.ID, lifecycle.Patch{
		Status: statusPtr(models.StatusPriceSet), Price: floatPtr(0), DeliveryTime: strPtr("1 day"),
	})
	require.NoError(t, err)
	require.NotNil(t, req.Price)
	require.Equal(t, 0.0, *req.Price)
}

func TestEditsLockAfterPricing(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Fix bug", "")
	require.NoError(t, err)
	_, err = engine.Update(ctx, admin, req.ID, lifecycle.Patch{
		Status: statusPtr(models.StatusPriceSet), Price: floatPtr(50), DeliveryTime: strPtr("3 days"),
	})
	require.NoError(t, err)

	_, err = engine.Update(ctx, owner, req.ID, lifecycle.Patch{Title: strPtr("new title")})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestPriceNotEditableWithoutTransition(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Fix bug", "")
	require.NoError(t, err)

	_, err = engine.Update(ctx, admin, req.ID, lifecycle.Patch{Price: floatPtr(99)})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestListScoping(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	first, err := engine.Create(ctx, owner, "first", "")
	require.NoError(t, err)
	second, err := engine.Create(ctx, stranger, "second", "")
	require.NoError(t, err)
	third, err := engine.Create(ctx, owner, "third", "")
	require.NoError(t, err)

	mine, err := engine.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, first.ID, mine[0].ID)
	require.Equal(t, third.ID, mine[1].ID)

	all, err := engine.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []int64{first.ID, second.ID, third.ID},
		[]int64{all[0].ID, all[1].ID, all[2].ID})
}

func TestDeleteCascadesChatHistory(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Fix bug", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, req.ID, "Alice", "hello")
	require.NoError(t, err)

	require.NoError(t, engine.Delete(ctx, owner, req.ID))

	_, err = engine.Get(ctx, admin, req.ID)
	require.Error(t, err)
	messages, err := store.ListMessagesByRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestConcurrentUpdatesAllApply(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	req, err := engine.Create(ctx, owner, "Fix bug", "")
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Update(ctx, owner, req.ID, lifecycle.Patch{
				Title: strPtr(fmt.Sprintf("title-%d", i)),
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	after, err := engine.Get(ctx, owner, req.ID)
	require.NoError(t, err)
	require.Regexp(t, `^title-\d+$`, after.Title)
}
