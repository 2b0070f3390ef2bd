package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/transport"
	"github.com/Proton-105/storefront-bot/internal/transport/transporttest"
)

type fakeSettings struct {
	mu       sync.Mutex
	settings map[int64]domain.AdminSettings
	err      error
}

func (f *fakeSettings) GetOrCreate(_ context.Context, adminID int64) (domain.AdminSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.AdminSettings{}, f.err
	}
	if s, ok := f.settings[adminID]; ok {
		return s, nil
	}
	return domain.DefaultAdminSettings(adminID), nil
}

func (f *fakeSettings) Save(_ context.Context, s domain.AdminSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[s.AdminID] = s
	return nil
}

func TestRouter_NotifyAdmins(t *testing.T) {
	testCases := []struct {
		name     string
		kind     domain.NotificationKind
		settings map[int64]domain.AdminSettings
		failFor  int64
		want     Delivery
		wantTo   []int64
	}{
		{
			name:   "all defaults",
			kind:   domain.NotifyPayment,
			want:   Delivery{Sent: 2},
			wantTo: []int64{10, 20},
		},
		{
			name: "payments disabled for one admin",
			kind: domain.NotifyPayment,
			settings: map[int64]domain.AdminSettings{
				10: {AdminID: 10, NotifyPayments: false, NotifyNewUsers: true},
			},
			want:   Delivery{Sent: 1, Skipped: 1},
			wantTo: []int64{20},
		},
		{
			name: "orders follow the payments flag",
			kind: domain.NotifyOrder,
			settings: map[int64]domain.AdminSettings{
				20: {AdminID: 20, NotifyPayments: false, NotifyNewUsers: true},
			},
			want:   Delivery{Sent: 1, Skipped: 1},
			wantTo: []int64{10},
		},
		{
			name: "new users gated separately",
			kind: domain.NotifyNewUser,
			settings: map[int64]domain.AdminSettings{
				10: {AdminID: 10, NotifyPayments: true, NotifyNewUsers: false},
				20: {AdminID: 20, NotifyPayments: false, NotifyNewUsers: false},
			},
			want: Delivery{Skipped: 2},
		},
		{
			name:    "failure does not stop fan-out",
			kind:    domain.NotifyPayment,
			failFor: 10,
			want:    Delivery{Sent: 1, Failed: 1},
			wantTo:  []int64{20},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := transporttest.New()
			if tc.failFor != 0 {
				rec.FailFor(tc.failFor, errors.New("blocked"))
			}
			settings := &fakeSettings{settings: map[int64]domain.AdminSettings{}}
			for id, s := range tc.settings {
				settings.settings[id] = s
			}

			router := NewRouter(NewAdminSet([]int64{10, 20}), settings, rec, testLogger())
			got := router.NotifyAdmins(context.Background(), tc.kind, transport.Text("new payment"))

			assert.Equal(t, tc.want, got)
			var to []int64
			for _, c := range rec.Calls() {
				to = append(to, c.Ref.ChatID)
			}
			assert.Equal(t, tc.wantTo, to)
		})
	}
}

func TestRouter_NotifyAdmins_SettingsErrorUsesDefaults(t *testing.T) {
	rec := transporttest.New()
	settings := &fakeSettings{settings: map[int64]domain.AdminSettings{}, err: errors.New("db down")}

	router := NewRouter(NewAdminSet([]int64{10}), settings, rec, testLogger())
	got := router.NotifyAdmins(context.Background(), domain.NotifyPayment, transport.Text("x"))

	assert.Equal(t, Delivery{Sent: 1}, got)
}

func TestRouter_NotifyUser(t *testing.T) {
	rec := transporttest.New()
	sendErr := errors.New("chat not found")
	rec.FailFor(2, sendErr)
	router := NewRouter(NewAdminSet(nil), &fakeSettings{settings: map[int64]domain.AdminSettings{}}, rec, testLogger())

	require.NoError(t, router.NotifyUser(context.Background(), 1, transport.Text("approved")))
	assert.Equal(t, []string{"approved"}, rec.Texts(1))

	assert.ErrorIs(t, router.NotifyUser(context.Background(), 2, transport.Text("approved")), sendErr)
}

func TestAdminSet(t *testing.T) {
	set := NewAdminSet([]int64{5, 0, 5, -1, 7})

	assert.Equal(t, []int64{5, 7}, set.IDs())
	assert.True(t, set.Contains(7))
	assert.False(t, set.Contains(0))
	assert.Equal(t, 2, set.Len())

	set.Replace([]int64{9})
	assert.False(t, set.Contains(5))
	assert.Equal(t, []int64{9}, set.IDs())

	var nilSet *AdminSet
	assert.False(t, nilSet.Contains(1))
	assert.Nil(t, nilSet.IDs())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
