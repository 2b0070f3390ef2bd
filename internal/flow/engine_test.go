package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/internal/captcha"
	"github.com/Proton-105/storefront-bot/internal/database"
	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/moderation"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/repository"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/internal/transport/transporttest"
	"github.com/Proton-105/storefront-bot/internal/user"
	"github.com/Proton-105/storefront-bot/pkg/config"
)

const (
	adminOn  = int64(900)
	adminOff = int64(901)
)

var buyer = Sender{ID: 1, Username: "buyer", FirstName: "Ivan", LastName: "Petrov"}

type fixedChallenges struct {
	mu      sync.Mutex
	answers []string
	next    int
}

func (f *fixedChallenges) Generate() captcha.Challenge {
	f.mu.Lock()
	defer f.mu.Unlock()

	answer := f.answers[len(f.answers)-1]
	if f.next < len(f.answers) {
		answer = f.answers[f.next]
	}
	f.next++
	return captcha.Challenge{Answer: answer, Image: []byte("png:" + answer)}
}

type failingPayments struct{}

func (failingPayments) Submit(context.Context, moderation.Submission) (domain.Payment, error) {
	return domain.Payment{}, apperrors.NewStoreError("insert payment", context.DeadlineExceeded)
}

type recordingAdmin struct {
	texts []string
}

func (r *recordingAdmin) HandleAdminText(_ context.Context, _ Sender, s *state.Session, text string) error {
	r.texts = append(r.texts, text)
	s.Enter(state.StateAdminBroadcastConfirm)
	return nil
}

type fixture struct {
	engine   *Engine
	machine  state.StateMachine
	rec      *transporttest.Recorder
	tr       i18n.Translator
	users    repository.UserRepository
	payments repository.PaymentRepository
}

func newFixture(t *testing.T, answers ...string) *fixture {
	t.Helper()
	if len(answers) == 0 {
		answers = []string{"48213"}
	}

	db := newTestDB(t)
	manager, err := i18n.Load("ru")
	require.NoError(t, err)

	storage, err := state.NewMemoryStorage(100, time.Hour)
	require.NoError(t, err)
	machine := state.NewStateMachine(storage, nil, testLogger())

	rec := transporttest.New()
	userRepo := repository.NewUserRepository(db, testLogger())
	paymentRepo := repository.NewPaymentRepository(db, testLogger())
	settingsRepo := repository.NewSettingsRepository(db, testLogger())
	require.NoError(t, settingsRepo.Save(context.Background(), domain.AdminSettings{AdminID: adminOff}))

	router := notify.NewRouter(notify.NewAdminSet([]int64{adminOn, adminOff}), settingsRepo, rec, testLogger())
	queue := moderation.NewQueue(paymentRepo, router, manager.Default(), time.UTC, testLogger())

	engine := NewEngine(Deps{
		Machine:   machine,
		Captcha:   &fixedChallenges{answers: answers},
		Users:     user.NewService(userRepo, nil, time.UTC, testLogger()),
		Payments:  queue,
		Notifier:  router,
		Transport: rec,
		Texts:     manager,
	}, testLogger())
	engine.newRef = func() string { return "#TEST" }

	return &fixture{
		engine:   engine,
		machine:  machine,
		rec:      rec,
		tr:       manager.Default(),
		users:    userRepo,
		payments: paymentRepo,
	}
}

func (f *fixture) session(t *testing.T, userID int64) *state.Session {
	t.Helper()
	s, err := f.machine.Current(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func (f *fixture) lastText(t *testing.T, chatID int64) string {
	t.Helper()
	call, ok := f.rec.Last(chatID)
	require.True(t, ok, "no message sent to %d", chatID)
	return call.Message.Text
}

// register walks the user through the captcha.
func (f *fixture) register(t *testing.T, sender Sender) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.engine.Start(ctx, sender))
	answer := f.session(t, sender.ID).Get(keyCaptcha)
	require.NoError(t, f.engine.HandleText(ctx, sender, answer))
	require.Equal(t, state.StateMenuReady, f.session(t, sender.ID).State)
	f.rec.Reset()
}

func TestEngine_CaptchaPassRegistersUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "48213")

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, f.engine.Start(ctx, buyer))

	calls := f.rec.CallsTo(buyer.ID)
	require.Len(t, calls, 1)
	assert.Equal(t, transporttest.KindImage, calls[0].Kind)
	assert.Equal(t, []byte("png:48213"), calls[0].Image)
	assert.Equal(t, f.tr.T("captcha.prompt"), calls[0].Message.Text)

	s := f.session(t, buyer.ID)
	assert.Equal(t, state.StateAwaitingCaptcha, s.State)
	assert.Equal(t, "48213", s.Get(keyCaptcha))

	require.NoError(t, f.engine.HandleText(ctx, buyer, "48213"))

	s = f.session(t, buyer.ID)
	assert.Equal(t, state.StateMenuReady, s.State)
	assert.Empty(t, s.Get(keyCaptcha))

	stored, err := f.users.FindByID(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer", stored.Username)
	assert.Equal(t, "Ivan", stored.FirstName)
	assert.False(t, stored.RegisteredAt.Before(before.Truncate(time.Second)))
	assert.False(t, stored.RegisteredAt.After(time.Now().UTC()))

	texts := f.rec.Texts(buyer.ID)
	require.Len(t, texts, 3)
	assert.Equal(t, f.tr.T("captcha.passed"), texts[1])
	assert.Contains(t, texts[2], "Ivan")
	welcome, _ := f.rec.Last(buyer.ID)
	assert.Equal(t, []string{"menu:topup", "menu:order"}, transporttest.Actions(welcome.Message))

	assert.Len(t, f.rec.CallsTo(adminOn), 1, "new user notice")
	assert.Empty(t, f.rec.CallsTo(adminOff))
}

func TestEngine_CaptchaMismatchRegenerates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "11111", "22222")

	require.NoError(t, f.engine.Start(ctx, buyer))
	require.NoError(t, f.engine.HandleText(ctx, buyer, "99999"))

	s := f.session(t, buyer.ID)
	assert.Equal(t, state.StateAwaitingCaptcha, s.State)
	assert.Equal(t, "22222", s.Get(keyCaptcha))

	retry, ok := f.rec.Last(buyer.ID)
	require.True(t, ok)
	assert.Equal(t, transporttest.KindImage, retry.Kind)
	assert.True(t, retry.Message.HTML)
	assert.Equal(t, f.tr.T("captcha.wrong"), retry.Message.Text)

	require.NoError(t, f.engine.HandleText(ctx, buyer, "11111"))
	assert.Equal(t, state.StateAwaitingCaptcha, f.session(t, buyer.ID).State, "stale answer must not pass")

	exists, err := f.users.Exists(ctx, buyer.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.engine.HandleText(ctx, buyer, " 22222 "))
	assert.Equal(t, state.StateMenuReady, f.session(t, buyer.ID).State)
}

func TestEngine_CaptchaResendFailureClearsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "11111", "22222")

	require.NoError(t, f.engine.Start(ctx, buyer))
	f.rec.FailImagesFor(buyer.ID, errors.New("telegram: bad gateway"))

	require.NoError(t, f.engine.HandleText(ctx, buyer, "99999"))
	assert.Equal(t, state.StateIdle, f.session(t, buyer.ID).State)
	assert.Equal(t, f.tr.T("common.error"), f.lastText(t, buyer.ID))

	require.NoError(t, f.engine.HandleText(ctx, buyer, "11111"))
	assert.Equal(t, state.StateIdle, f.session(t, buyer.ID).State, "old answer must not pass")

	exists, err := f.users.Exists(ctx, buyer.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEngine_StartSendFailureClearsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "11111", "22222")

	require.NoError(t, f.engine.Start(ctx, buyer))
	f.rec.FailImagesFor(buyer.ID, errors.New("telegram: bad gateway"))

	require.NoError(t, f.engine.Start(ctx, buyer))
	assert.Equal(t, state.StateIdle, f.session(t, buyer.ID).State)
	assert.Equal(t, f.tr.T("common.error"), f.lastText(t, buyer.ID))
}

func TestEngine_RepeatRegistrationDoesNotNotifyAgain(t *testing.T) {
	f := newFixture(t)

	f.register(t, buyer)
	f.register(t, buyer)

	assert.Empty(t, f.rec.CallsTo(adminOn))
}

func TestEngine_PaymentFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, buyer)

	require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:topup"))
	assert.Equal(t, state.StatePaymentAmount, f.session(t, buyer.ID).State)
	assert.Equal(t, f.tr.T("payment.ask_amount"), f.lastText(t, buyer.ID))

	require.NoError(t, f.engine.HandleText(ctx, buyer, "150"))
	s := f.session(t, buyer.ID)
	assert.Equal(t, state.StatePaymentMethod, s.State)
	assert.Equal(t, "150.00", s.Get(keyAmount))
	methods, _ := f.rec.Last(buyer.ID)
	assert.Equal(t, []string{"method:card", "method:qiwi", "method:btc", "payment:cancel"}, transporttest.Actions(methods.Message))

	require.NoError(t, f.engine.HandleAction(ctx, buyer, "method:card"))
	assert.Equal(t, state.StatePaymentComment, f.session(t, buyer.ID).State)

	require.NoError(t, f.engine.HandleText(ctx, buyer, "-"))
	assert.Equal(t, state.StateIdle, f.session(t, buyer.ID).State)

	payment, err := f.payments.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "150.00", domain.FormatAmount(payment.Amount))
	assert.Equal(t, domain.MethodCard, payment.Method)
	assert.Empty(t, payment.Comment)
	assert.Equal(t, domain.PaymentPending, payment.Status)
	assert.True(t, payment.AdminNotified)

	notice, ok := f.rec.Last(adminOn)
	require.True(t, ok)
	assert.Equal(t, []string{"pay:confirm:1", "pay:reject:1"}, transporttest.Actions(notice.Message))
	assert.Empty(t, f.rec.CallsTo(adminOff))

	assert.Contains(t, f.lastText(t, buyer.ID), "#1")
}

func TestEngine_AmountValidation(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		wantKey   string
		wantState state.State
	}{
		{name: "below minimum", input: "99.99", wantKey: "payment.too_small", wantState: state.StatePaymentAmount},
		{name: "above maximum", input: "50000.01", wantKey: "payment.too_large", wantState: state.StatePaymentAmount},
		{name: "not a number", input: "сто", wantKey: "payment.invalid_format", wantState: state.StatePaymentAmount},
		{name: "lower bound", input: "100", wantState: state.StatePaymentMethod},
		{name: "upper bound", input: "50000", wantState: state.StatePaymentMethod},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.register(t, buyer)
			require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:topup"))

			require.NoError(t, f.engine.HandleText(ctx, buyer, tc.input))
			assert.Equal(t, tc.wantState, f.session(t, buyer.ID).State)
			if tc.wantKey != "" {
				assert.Equal(t, f.tr.T(tc.wantKey), f.lastText(t, buyer.ID))
			}
		})
	}
}

func TestEngine_MethodStepIgnoresOtherInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, buyer)
	require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:topup"))
	require.NoError(t, f.engine.HandleText(ctx, buyer, "500"))
	f.rec.Reset()

	require.NoError(t, f.engine.HandleText(ctx, buyer, "card"))
	require.NoError(t, f.engine.HandleAction(ctx, buyer, "method:cash"))

	assert.Empty(t, f.rec.Calls())
	assert.Equal(t, state.StatePaymentMethod, f.session(t, buyer.ID).State)
}

func TestEngine_PaymentCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, buyer)
	require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:topup"))
	require.NoError(t, f.engine.HandleText(ctx, buyer, "500"))

	require.NoError(t, f.engine.HandleAction(ctx, buyer, "payment:cancel"))

	assert.Equal(t, state.StateIdle, f.session(t, buyer.ID).State)
	assert.Equal(t, f.tr.T("payment.cancelled"), f.lastText(t, buyer.ID))
}

func TestEngine_SubmitFailureResetsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.engine.payments = failingPayments{}
	f.register(t, buyer)

	require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:topup"))
	require.NoError(t, f.engine.HandleText(ctx, buyer, "300"))
	require.NoError(t, f.engine.HandleAction(ctx, buyer, "method:btc"))
	require.NoError(t, f.engine.HandleText(ctx, buyer, "tx 0xabc"))

	assert.Equal(t, state.StateIdle, f.session(t, buyer.ID).State)
	assert.Equal(t, f.tr.T("common.error"), f.lastText(t, buyer.ID))
}

func TestEngine_OrderFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, buyer)

	require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:order"))
	s := f.session(t, buyer.ID)
	assert.Equal(t, state.StateOrderConfirmation, s.State)
	assert.Equal(t, "#TEST", s.Get(keyOrderRef))
	assert.Contains(t, f.lastText(t, buyer.ID), "#TEST")

	require.NoError(t, f.engine.HandleText(ctx, buyer, "paid?"))
	assert.Equal(t, f.tr.T("order.confirm_hint"), f.lastText(t, buyer.ID))

	require.NoError(t, f.engine.HandleAction(ctx, buyer, "order:paid"))
	assert.Equal(t, state.StateOrderAddress, f.session(t, buyer.ID).State)

	require.NoError(t, f.engine.HandleText(ctx, buyer, "Moscow, Tverskaya 1"))
	assert.Equal(t, state.StateOrderDocument, f.session(t, buyer.ID).State)

	require.NoError(t, f.engine.HandleDocument(ctx, buyer, Document{FileID: "img-1", FileName: "proof.jpg", MIME: "image/jpeg"}))
	assert.Equal(t, state.StateOrderDocument, f.session(t, buyer.ID).State)
	assert.Equal(t, f.tr.T("order.need_pdf"), f.lastText(t, buyer.ID))

	require.NoError(t, f.engine.HandleText(ctx, buyer, "here it is"))
	assert.Equal(t, f.tr.T("order.need_pdf"), f.lastText(t, buyer.ID))

	require.NoError(t, f.engine.HandleDocument(ctx, buyer, Document{FileID: "pdf-1", FileName: "proof.pdf", MIME: "application/pdf"}))
	assert.Equal(t, state.StateIdle, f.session(t, buyer.ID).State)

	notice, ok := f.rec.Last(adminOn)
	require.True(t, ok)
	assert.Equal(t, "pdf-1", notice.Message.DocumentID)
	assert.Contains(t, notice.Message.Text, "Moscow, Tverskaya 1")
	assert.Empty(t, f.rec.CallsTo(adminOff))
	assert.Contains(t, f.lastText(t, buyer.ID), "proof.pdf")
}

func TestEngine_OrderCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, buyer)
	require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:order"))
	require.NoError(t, f.engine.HandleAction(ctx, buyer, "order:paid"))

	require.NoError(t, f.engine.HandleAction(ctx, buyer, "order:cancel"))

	assert.Equal(t, state.StateIdle, f.session(t, buyer.ID).State)
	assert.Equal(t, f.tr.T("order.cancelled"), f.lastText(t, buyer.ID))
}

func TestEngine_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, buyer)
	require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:topup"))
	require.NoError(t, f.engine.HandleText(ctx, buyer, "700"))

	require.NoError(t, f.engine.Cancel(ctx, buyer))

	s := f.session(t, buyer.ID)
	assert.Equal(t, state.StateIdle, s.State)
	assert.Empty(t, s.Data)
	assert.Equal(t, f.tr.T("common.cancelled"), f.lastText(t, buyer.ID))
}

func TestEngine_MenuAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("unregistered user must start", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:topup"))
		assert.Equal(t, state.StateIdle, f.session(t, buyer.ID).State)
		assert.Equal(t, f.tr.T("common.start_first"), f.lastText(t, buyer.ID))
	})

	t.Run("registered idle user can use the menu", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, buyer)
		require.NoError(t, f.engine.Cancel(ctx, buyer))

		require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:order"))
		assert.Equal(t, state.StateOrderConfirmation, f.session(t, buyer.ID).State)
	})

	t.Run("menu is refused mid-flow", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, buyer)
		require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:topup"))
		require.NoError(t, f.engine.HandleText(ctx, buyer, "200"))

		require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:order"))
		s := f.session(t, buyer.ID)
		assert.Equal(t, state.StatePaymentMethod, s.State)
		assert.Equal(t, "200.00", s.Get(keyAmount))
		assert.Equal(t, f.tr.T("common.finish_current"), f.lastText(t, buyer.ID))
	})

	t.Run("idle text shows menu to registered users", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, buyer)
		require.NoError(t, f.engine.Cancel(ctx, buyer))

		require.NoError(t, f.engine.HandleText(ctx, buyer, "hello"))
		assert.Equal(t, f.tr.T("menu.prompt"), f.lastText(t, buyer.ID))
	})
}

func TestEngine_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := Sender{ID: 2, Username: "other", FirstName: "Olga"}
	f.register(t, buyer)
	f.register(t, other)

	require.NoError(t, f.engine.HandleAction(ctx, buyer, "menu:topup"))
	require.NoError(t, f.engine.HandleAction(ctx, other, "menu:order"))
	require.NoError(t, f.engine.HandleText(ctx, buyer, "150"))
	require.NoError(t, f.engine.HandleAction(ctx, other, "order:paid"))
	require.NoError(t, f.engine.HandleText(ctx, other, "Kazan"))

	first := f.session(t, buyer.ID)
	second := f.session(t, other.ID)

	assert.Equal(t, state.StatePaymentMethod, first.State)
	assert.Equal(t, "150.00", first.Get(keyAmount))
	assert.Empty(t, first.Get(keyAddress))

	assert.Equal(t, state.StateOrderDocument, second.State)
	assert.Equal(t, "Kazan", second.Get(keyAddress))
	assert.Empty(t, second.Get(keyAmount))
}

func TestEngine_AdminStatesDelegate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := &recordingAdmin{}
	f.engine.SetAdmin(admin)

	require.NoError(t, f.machine.Do(ctx, adminOn, func(_ context.Context, s *state.Session) error {
		s.Enter(state.StateAdminBroadcastMessage)
		return nil
	}))

	require.NoError(t, f.engine.HandleText(ctx, Sender{ID: adminOn}, "sale today"))

	assert.Equal(t, []string{"sale today"}, admin.texts)
	assert.Equal(t, state.StateAdminBroadcastConfirm, f.session(t, adminOn).State)
}

func TestOwns(t *testing.T) {
	assert.True(t, Owns("menu"))
	assert.True(t, Owns("order"))
	assert.False(t, Owns("admin"))
	assert.False(t, Owns("pay"))
}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "flow.db"),
	}
	db, err := database.Open(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, cfg.Driver, testLogger()).Up())
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
