package deal

import (
	"testing"
	"time"
)

func TestValidTransition(t *testing.T) {
	testCases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{
			name: "pending to active",
			from: StatusPending,
			to:   StatusActive,
			want: true,
		},
		{
			name: "pending to terminated",
			from: StatusPending,
			to:   StatusTerminated,
			want: true,
		},
		{
			name: "active to terminated",
			from: StatusActive,
			to:   StatusTerminated,
			want: true,
		},
		{
			name: "terminated to active",
			from: StatusTerminated,
			to:   StatusActive,
			want: false,
		},
		{
			name: "active to pending",
			from: StatusActive,
			to:   StatusPending,
			want: false,
		},
		{
			name: "terminated to terminated",
			from: StatusTerminated,
			to:   StatusTerminated,
			want: false,
		},
		{
			name: "expired to active",
			from: StatusExpired,
			to:   StatusActive,
			want: false,
		},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			if got := ValidTransition(c.from, c.to); got != c.want {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v",
					c.from, c.to, got, c.want)
			}
		})
	}
}

func TestOnChainIDIsStable(t *testing.T) {
	a := OnChainID("deal-1")
	b := OnChainID("deal-1")
	if a != b {
		t.Error("hash of same id differs")
	}

	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}

	if OnChainID("deal-2") == a {
		t.Error("distinct ids collide")
	}
}

func TestExpiredIsDerived(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	testCases := []struct {
		name string
		deal Deal
		want bool
	}{
		{
			name: "active past expiry",
			deal: Deal{Status: StatusActive, ExpiresAt: &past},
			want: true,
		},
		{
			name: "active before expiry",
			deal: Deal{Status: StatusActive, ExpiresAt: &future},
			want: false,
		},
		{
			name: "pending never expires",
			deal: Deal{Status: StatusPending, ExpiresAt: &past},
			want: false,
		},
		{
			name: "terminated never expires",
			deal: Deal{Status: StatusTerminated, ExpiresAt: &past},
			want: false,
		},
		{
			name: "no expiry set",
			deal: Deal{Status: StatusActive},
			want: false,
		},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.deal.Expired(now); got != c.want {
				t.Errorf("Expired = %v, want %v", got, c.want)
			}

			wantStatus := c.deal.Status
			if c.want {
				wantStatus = StatusExpired
			}

			if got := c.deal.EffectiveStatus(now); got != wantStatus {
				t.Errorf("EffectiveStatus = %s, want %s", got, wantStatus)
			}
		})
	}
}

func TestNeedsRenewal(t *testing.T) {
	now := time.Now().UTC()
	in3d := now.Add(3 * 24 * time.Hour)
	in30d := now.Add(30 * 24 * time.Hour)

	d := Deal{Status: StatusActive, ExpiresAt: &in3d}
	if !d.NeedsRenewal(now, 7) {
		t.Error("deal expiring in 3 days should need renewal at 7 day threshold")
	}

	d.ExpiresAt = &in30d
	if d.NeedsRenewal(now, 7) {
		t.Error("deal expiring in 30 days should not need renewal at 7 day threshold")
	}

	d.Status = StatusPending
	if d.NeedsRenewal(now, 7) {
		t.Error("pending deal should never need renewal")
	}
}
