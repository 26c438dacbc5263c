package otp

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	sl "identity_service/internal/lib/logger/sl"
	"identity_service/internal/metrics"
	"identity_service/internal/models"
	redisrepo "identity_service/internal/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentCode struct {
	channel models.Channel
	address string
	code    string
}

type fakeNotifier struct {
	sent []sentCode
}

func (f *fakeNotifier) SendCode(_ context.Context, channel models.Channel, address, code string) {
	f.sent = append(f.sent, sentCode{channel: channel, address: address, code: code})
}

type failingStore struct{}

func (failingStore) ReplaceCode(context.Context, models.OneTimeCode, time.Duration) error {
	return errors.New("redis down")
}

func (failingStore) ConsumeCode(context.Context, string, string, time.Time) (bool, error) {
	return false, errors.New("redis down")
}

type fixture struct {
	ledger   *Ledger
	notifier *fakeNotifier
	metrics  *metrics.Metrics
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m, err := metrics.New(nil)
	require.NoError(t, err)

	f := &fixture{
		notifier: &fakeNotifier{},
		metrics:  m,
		now:      time.Unix(1_700_000_000, 0),
	}

	f.ledger = New(sl.NewDiscardLogger(), redisrepo.NewWithClient(client, "otp"), f.notifier, m, 0)
	f.ledger.WithClock(func() time.Time { return f.now })

	var n int
	f.ledger.WithGenerator(func() (string, error) {
		n++
		return strconv.Itoa(500000 + n), nil
	})

	return f
}

func TestIssueVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.ledger.Issue(ctx, "ada@x.io", models.ChannelEmail)
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sentCode{channel: models.ChannelEmail, address: "ada@x.io", code: code}, f.notifier.sent[0])

	ok, err := f.ledger.Verify(ctx, "ada@x.io", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ledger.Verify(ctx, "ada@x.io", code)
	require.NoError(t, err)
	assert.False(t, ok, "code must be single use")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OTPIssued.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OTPVerifications.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OTPVerifications.WithLabelValues("rejected")))
}

func TestReissueInvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ledger.Issue(ctx, "+15550001", models.ChannelMobile)
	require.NoError(t, err)
	second, err := f.ledger.Issue(ctx, "+15550001", models.ChannelMobile)
	require.NoError(t, err)

	ok, err := f.ledger.Verify(ctx, "+15550001", first)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.ledger.Verify(ctx, "+15550001", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyAfterDefaultTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.ledger.Issue(ctx, "ada@x.io", models.ChannelEmail)
	require.NoError(t, err)

	f.now = f.now.Add(DefaultTTL + time.Millisecond)

	ok, err := f.ledger.Verify(ctx, "ada@x.io", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreFailures(t *testing.T) {
	notifier := &fakeNotifier{}
	ledger := New(sl.NewDiscardLogger(), failingStore{}, notifier, nil, time.Minute)

	_, err := ledger.Issue(context.Background(), "ada@x.io", models.ChannelEmail)
	assert.Error(t, err)
	assert.Empty(t, notifier.sent, "nothing is sent when the code was not stored")

	_, err = ledger.Verify(context.Background(), "ada@x.io", "123456")
	assert.Error(t, err)
}

func TestGenerateCode(t *testing.T) {
	for range 1000 {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}
