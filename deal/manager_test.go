package deal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func createTestDeal(t *testing.T, env *testEnv, tier Tier) *Deal {
	t.Helper()
	d, instructions, err := env.manager.Create(context.Background(), CreateParams{
		CID:               "bafy123",
		ClientAddress:     "0xAAA",
		ProviderPublicKey: "pk-provider",
		SizeMB:            50,
		DurationDays:      30,
		Tier:              tier,
	})
	require.NoError(t, err)
	require.NotNil(t, instructions)
	return d
}

func fundClient(env *testEnv, d *Deal) {
	env.registry.allowance = AtomicUSDC(d.Pricing.TotalPriceUSDC)
}

func TestCreateDeal(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d, instructions, err := env.manager.Create(context.Background(), CreateParams{
		CID:               "bafy123",
		ClientAddress:     "0xAAA",
		ProviderPublicKey: "pk-provider",
		SizeMB:            50,
		DurationDays:      30,
		Tier:              TierStandard,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, d.Status)
	require.NotEmpty(t, d.ID)
	require.Nil(t, d.ExpiresAt)

	// The quote must match the pricing engine exactly.
	p, err := env.manager.pricing.DealPrice(50, 30, TierStandard)
	require.NoError(t, err)
	require.True(t, d.Pricing.TotalPriceUSDC.Equal(p.TotalPriceUSDC))
	require.Equal(t, AtomicUSDC(p.TotalPriceUSDC).String(), instructions.AtomicAmount)
	require.Equal(t, "0xregistry", instructions.Recipient)
	require.EqualValues(t, 8453, instructions.ChainID)

	// The deal is persisted off-chain and readable back.
	got, err := env.store.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, d.ID, got.ID)
}

func TestCreateDealRejectsUnknownTier(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	_, _, err := env.manager.Create(context.Background(), CreateParams{
		CID:           "bafy123",
		ClientAddress: "0xAAA",
		SizeMB:        50,
		DurationDays:  30,
		Tier:          Tier("gold"),
	})
	require.ErrorIs(t, err, ErrInvalidTier)
}

func TestActivateDeal(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)
	fundClient(env, d)

	activated, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusActive, activated.Status)
	require.Equal(t, OnChainID(d.ID), activated.OnChainDealID)
	require.NotEmpty(t, activated.PaymentTx)
	require.True(t, activated.OnChainRegistered)
	require.NotNil(t, activated.ActivatedAt)
	require.NotNil(t, activated.ExpiresAt)
	require.WithinDuration(t,
		activated.ActivatedAt.Add(30*24*time.Hour),
		*activated.ExpiresAt,
		time.Second,
	)

	// Registration pulled payment exactly once.
	require.Len(t, env.registry.registered, 1)

	// The content pin is scheduled asynchronously.
	require.Eventually(t, func() bool {
		pinned, _ := env.storage.PinLs(context.Background(), d.CID)
		return pinned
	}, time.Second, 5*time.Millisecond)
}

func TestActivateInsufficientAllowance(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)
	env.registry.allowance = decimal.NewFromInt(1)

	_, err := env.manager.Activate(context.Background(), d.ID, nil)
	var pe *PaymentError
	require.ErrorAs(t, err, &pe)

	// The deal must remain pending and unregistered.
	got, err := env.store.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Empty(t, env.registry.registered)
}

func TestActivateLedgerFailureStaysPending(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)
	fundClient(env, d)
	env.registry.registerErr = errRegistryDown

	_, err := env.manager.Activate(context.Background(), d.ID, nil)
	var le *LedgerError
	require.ErrorAs(t, err, &le)

	got, err := env.store.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
}

func TestActivateNonPendingDeal(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)
	fundClient(env, d)

	_, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)

	// A second activation fails the precondition cheaply.
	_, err = env.manager.Activate(context.Background(), d.ID, nil)
	require.ErrorIs(t, err, ErrNotPending)
}

func TestActivateAppliesTierFeatures(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	content := make([]byte, 200)
	for i := range content {
		content[i] = byte(i)
	}

	env.storage.put("bafy123", content)

	d := createTestDeal(t, env, TierPremium)
	fundClient(env, d)

	_, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.store.Get(context.Background(), d.ID)
		if err != nil || got == nil {
			return false
		}

		return got.ErasureMetadata != nil && got.ReplicationRequestID != ""
	}, 2*time.Second, 10*time.Millisecond)

	got, err := env.store.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.Empty(t, got.ErasureCodingError)
	require.Equal(t, "bafy123", got.ErasureMetadata.OriginalCID)
	require.Len(t, got.ErasureMetadata.Chunks, 6)
	for _, c := range got.ErasureMetadata.Chunks {
		require.NotEmpty(t, c.CID, "chunk %d not uploaded", c.Index)
	}

	// The replication request is visible on the broadcast namespace.
	req := &ReplicationRequest{}
	found, err := env.graph.Get(context.Background(),
		"replication/requests/"+got.ReplicationRequestID, req)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 3, req.Factor)
	require.Equal(t, "bafy123", req.CID)
	require.Equal(t, "relay-1", req.Requester)
}

func TestErasureFailureRecordedOnDeal(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	// Object intentionally missing from the storage network.
	d := createTestDeal(t, env, TierPremium)
	fundClient(env, d)

	activated, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusActive, activated.Status)

	require.Eventually(t, func() bool {
		got, err := env.store.Get(context.Background(), d.ID)
		if err != nil || got == nil {
			return false
		}

		return got.ErasureCodingError != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRenewExtendsExpiry(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)
	fundClient(env, d)
	activated, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)
	before := *activated.ExpiresAt

	renewed, err := env.manager.Renew(context.Background(), d.ID, 15, nil)
	require.NoError(t, err)
	require.Equal(t, StatusActive, renewed.Status)
	require.Equal(t, before.Add(15*24*time.Hour), *renewed.ExpiresAt)
}

func TestRenewRequiresSettlement(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)
	fundClient(env, d)
	_, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)

	env.payments.settleOK = false
	env.payments.settleReason = "card declined"

	_, err = env.manager.Renew(context.Background(), d.ID, 15, nil)
	var pe *PaymentError
	require.ErrorAs(t, err, &pe)
	require.Contains(t, pe.Reason, "card declined")
}

func TestRenewRequiresActive(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)
	_, err := env.manager.Renew(context.Background(), d.ID, 15, nil)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestTerminate(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)

	// A stranger may not terminate.
	_, err := env.manager.Terminate(context.Background(), d.ID, "spam", "0xBBB")
	require.ErrorIs(t, err, ErrTerminateNotAllowed)

	// The owning client cancels from pending.
	terminated, err := env.manager.Terminate(context.Background(), d.ID,
		"changed my mind", "0xAAA")
	require.NoError(t, err)
	require.Equal(t, StatusTerminated, terminated.Status)
	require.NotNil(t, terminated.TerminatedAt)
	require.Equal(t, "changed my mind", terminated.TerminationReason)

	// Double-terminate must be rejected, not silently accepted.
	_, err = env.manager.Terminate(context.Background(), d.ID, "again", "0xAAA")
	require.ErrorIs(t, err, ErrAlreadyTerminated)
}

func TestTerminateActiveByAdmin(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)
	fundClient(env, d)
	_, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)

	terminated, err := env.manager.Terminate(context.Background(), d.ID,
		"abuse", "0xoperator")
	require.NoError(t, err)
	require.Equal(t, StatusTerminated, terminated.Status)

	// No activation is possible afterwards.
	_, err = env.manager.Activate(context.Background(), d.ID, nil)
	require.ErrorIs(t, err, ErrNotPending)
}

func TestGetFallsBackToLedgerStub(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)
	fundClient(env, d)
	_, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)

	// Drop every off-chain copy, as if this node never saw the deal.
	env.graph.mu.Lock()
	env.graph.records = map[string]json.RawMessage{}
	env.graph.mu.Unlock()
	env.store.cache.Flush()

	got, err := env.manager.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.True(t, got.FromOnChainOnly)
	require.Equal(t, d.ID, got.ID)
	require.Equal(t, OnChainID(d.ID), got.OnChainDealID)
}

func TestReportGriefsRegisteredDeal(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := createTestDeal(t, env, TierStandard)

	_, err := env.manager.Report(context.Background(), d.ID, "100", "data lost")
	require.ErrorIs(t, err, ErrNotRegistered)

	fundClient(env, d)
	_, err = env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)

	tx, err := env.manager.Report(context.Background(), d.ID, "100", "data lost")
	require.NoError(t, err)
	require.NotEmpty(t, tx)
	require.Equal(t, []string{OnChainID(d.ID)}, env.registry.griefed)
}

func TestActivateRecordMissingQuote(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	// A partially replicated record can arrive without its quote.
	d := &Deal{
		ID:            "deal-partial",
		ClientAddress: "0xAAA",
		CID:           "bafy123",
		SizeMB:        50,
		DurationDays:  30,
		Tier:          TierStandard,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, env.store.Save(context.Background(), d))

	_, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.ErrorIs(t, err, ErrNotPending)
	require.Empty(t, env.registry.registered)
}

func TestRenewRecordMissingExpiry(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	d := &Deal{
		ID:            "deal-noexpiry",
		ClientAddress: "0xAAA",
		CID:           "bafy123",
		SizeMB:        50,
		DurationDays:  30,
		Tier:          TierStandard,
		Status:        StatusActive,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, env.store.Save(context.Background(), d))

	_, err := env.manager.Renew(context.Background(), d.ID, 30, nil)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestActivateIsolatedFromConcurrentReaders(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	content := make([]byte, 200)
	for i := range content {
		content[i] = byte(i)
	}

	env.storage.put("bafy123", content)

	d := createTestDeal(t, env, TierPremium)
	fundClient(env, d)

	// Readers marshal their own copies while the background erasure
	// task rewrites the record.
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}

			got, err := env.store.Get(context.Background(), d.ID)
			if err != nil || got == nil {
				continue
			}

			if _, err := json.Marshal(got); err != nil {
				return
			}
		}
	}()

	_, err := env.manager.Activate(context.Background(), d.ID, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.store.Get(context.Background(), d.ID)
		if err != nil || got == nil {
			return false
		}

		return got.ErasureMetadata != nil
	}, 2*time.Second, 10*time.Millisecond)

	close(stop)
	<-readerDone
}
