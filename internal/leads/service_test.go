package leads

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/uootd-quotes/internal/storage"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

type fakeAssets struct {
	deleted []string
	ok      bool
}

func (f *fakeAssets) Delete(_ context.Context, quoteID string) bool {
	f.deleted = append(f.deleted, quoteID)
	return f.ok
}

type fakeNotifier struct {
	leads []Lead
}

func (f *fakeNotifier) LeadCaptured(_ context.Context, lead Lead) {
	f.leads = append(f.leads, lead)
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, "error")
}

func decodeRequest(t *testing.T, body string) CreateLeadRequest {
	t.Helper()
	var req CreateLeadRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func TestCreate_RejectsMissingContacts(t *testing.T) {
	blanks := []string{`""`, `"   "`, `null`, `42`}
	optional := []string{
		`{}`,
		`{"quoteId":"q-1","quoteUsd":245,"channel":"whatsapp","note":"size 38"}`,
	}
	svc := NewService(NewInMemoryRepository(), ServiceOptions{Logger: quietLogger()})

	for _, extra := range optional {
		for _, paypal := range append(blanks, `"pp@example.com"`) {
			for _, whatsapp := range append(blanks, `"+5511999998888"`) {
				if paypal == `"pp@example.com"` && whatsapp == `"+5511999998888"` {
					continue
				}
				var fields map[string]any
				require.NoError(t, json.Unmarshal([]byte(extra), &fields))
				fields["paypal"] = json.RawMessage(paypal)
				fields["whatsapp"] = json.RawMessage(whatsapp)
				body, err := json.Marshal(fields)
				require.NoError(t, err)

				_, _, err = svc.Create(context.Background(), decodeRequest(t, string(body)), CreateMeta{})
				assert.ErrorIs(t, err, ErrMissingContact, "paypal=%s whatsapp=%s extra=%s", paypal, whatsapp, extra)
			}
		}
	}
}

func TestCreate_CoercesFields(t *testing.T) {
	repo := NewInMemoryRepository()
	notifier := &fakeNotifier{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(repo, ServiceOptions{Logger: quietLogger(), Notifier: notifier, Now: func() time.Time { return now }})

	req := decodeRequest(t, `{
		"quoteId": " q-123 ",
		"category": "BAG",
		"productName": "Lady Dior",
		"detectedMsrpUsd": "6500",
		"quoteUsd": 379,
		"normalQuoteUsd": null,
		"selectedTier": "platinum",
		"selectedQuoteUsd": "abc",
		"status": "FAST_TRACK",
		"channel": "telegram",
		"paypal": " buyer@example.com ",
		"whatsapp": "+55 11 99999-8888",
		"size": 38,
		"note": "gift",
		"imageUrl": "https://cdn.example/x.png",
		"sourceIp": "6.6.6.6"
	}`)

	lead, backend, err := svc.Create(context.Background(), req, CreateMeta{SourceIP: "203.0.113.7"})
	require.NoError(t, err)
	assert.Equal(t, storage.BackendFS, backend)

	assert.Regexp(t, regexp.MustCompile(`^L-[0-9a-z]+-\d{4}$`), lead.ID)
	assert.Equal(t, now, lead.CreatedAt)
	assert.Equal(t, "q-123", lead.QuoteID)
	require.NotNil(t, lead.DetectedMSRPUSD)
	assert.Equal(t, 6500.0, *lead.DetectedMSRPUSD)
	require.NotNil(t, lead.QuoteUSD)
	assert.Equal(t, 379.0, *lead.QuoteUSD)
	assert.Nil(t, lead.NormalQuoteUSD)
	assert.Nil(t, lead.SelectedQuoteUSD)
	assert.Empty(t, lead.SelectedTier)
	assert.Empty(t, lead.Channel)
	assert.Equal(t, "buyer@example.com", lead.PayPal)
	assert.Equal(t, "+5511999998888", lead.WhatsAppE164)
	assert.Empty(t, lead.Size)
	assert.Equal(t, "203.0.113.7", lead.SourceIP)

	stored, _ := repo.List(context.Background())
	require.Len(t, stored, 1)
	assert.Equal(t, lead.ID, stored[0].ID)
	require.Len(t, notifier.leads, 1)
}

func TestCreate_NullPricesStayNull(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), ServiceOptions{Logger: quietLogger()})

	req := decodeRequest(t, `{
		"paypal": "buyer@example.com",
		"whatsapp": "+1 415 555 2671",
		"detectedMsrpUsd": null,
		"quoteUsd": null,
		"normalQuoteUsd": null,
		"selectedQuoteUsd": null
	}`)
	lead, _, err := svc.Create(context.Background(), req, CreateMeta{})
	require.NoError(t, err)

	assert.Nil(t, lead.DetectedMSRPUSD)
	assert.Nil(t, lead.QuoteUSD)
	assert.Nil(t, lead.NormalQuoteUSD)
	assert.Nil(t, lead.SelectedQuoteUSD)

	raw, err := json.Marshal(lead)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"quoteUsd":null`)
	assert.Contains(t, string(raw), `"selectedQuoteUsd":null`)
}

func TestCreate_ManualChannelNeedsSession(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), ServiceOptions{Logger: quietLogger()})
	req := decodeRequest(t, `{"paypal":"p","whatsapp":"w","channel":"manual"}`)

	_, _, err := svc.Create(context.Background(), req, CreateMeta{})
	assert.ErrorIs(t, err, ErrManualRequiresSession)

	lead, _, err := svc.Create(context.Background(), req, CreateMeta{Authenticated: true})
	require.NoError(t, err)
	assert.Equal(t, ChannelManual, lead.Channel)
}

func TestCreate_ReturnsLeadWhenStorageFails(t *testing.T) {
	repo := NewStoreRepository(nil, RepositoryConfig{Dir: storage.NewFSDir(), Logger: quietLogger()})
	svc := NewService(repo, ServiceOptions{Logger: quietLogger()})

	lead, backend, err := svc.Create(context.Background(), decodeRequest(t, `{"paypal":"p","whatsapp":"w"}`), CreateMeta{})
	require.NoError(t, err)
	assert.NotNil(t, lead)
	assert.Equal(t, storage.BackendNone, backend)
}

func TestList_NewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Storage order is not creation order, e.g. after a KV rewrite.
	for _, offset := range []int{2, 0, 3, 1} {
		repo.Append(context.Background(), &Lead{ID: string(rune('a' + offset)), CreatedAt: base.Add(time.Duration(offset) * time.Hour)})
	}
	svc := NewService(repo, ServiceOptions{Logger: quietLogger()})

	result := svc.List(context.Background())
	ids := make([]string, 0, len(result.Leads))
	for _, l := range result.Leads {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids)
	assert.Equal(t, 4, result.Count)
	assert.Equal(t, storage.BackendFS, result.Source)
}

func TestList_EmptyIsNotNull(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), ServiceOptions{Logger: quietLogger()})
	body, err := json.Marshal(svc.List(context.Background()))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"leads":[]`)
}

func TestDelete_CascadesToAsset(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Append(context.Background(), &Lead{ID: "L-1", QuoteID: "q-1"})
	assetStore := &fakeAssets{ok: true}
	svc := NewService(repo, ServiceOptions{Logger: quietLogger(), Assets: assetStore})

	result, err := svc.Delete(context.Background(), "L-1", "q-1")
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.True(t, result.AssetDeleted)
	assert.Equal(t, []string{"q-1"}, assetStore.deleted)
}

func TestDelete_AssetFailureDoesNotFailLead(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Append(context.Background(), &Lead{ID: "L-1"})
	svc := NewService(repo, ServiceOptions{Logger: quietLogger(), Assets: &fakeAssets{ok: false}})

	result, err := svc.Delete(context.Background(), "L-1", "q-1")
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.False(t, result.AssetDeleted)

	leads, _ := repo.List(context.Background())
	assert.Empty(t, leads)
}

func TestDelete_Errors(t *testing.T) {
	assetStore := &fakeAssets{ok: true}
	svc := NewService(NewInMemoryRepository(), ServiceOptions{Logger: quietLogger(), Assets: assetStore})

	_, err := svc.Delete(context.Background(), " ", "q-1")
	assert.ErrorIs(t, err, ErrMissingID)
	assert.Empty(t, assetStore.deleted)

	result, err := svc.Delete(context.Background(), "L-missing", "")
	assert.ErrorIs(t, err, ErrLeadNotFound)
	assert.False(t, result.Deleted)
}

func TestStoreRepository_RemoteAndFallback(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	dir := storage.NewFSDir(filepath.Join(t.TempDir(), "data"))
	repo := NewStoreRepository(rdb, RepositoryConfig{Dir: dir, MaxLen: 3, Logger: quietLogger()})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.Equal(t, storage.BackendKV, repo.Append(ctx, &Lead{ID: string(rune('a' + i)), PayPal: "p", WhatsApp: "w"}))
	}
	rows, err := mr.List(ListKey)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	leads, backend := repo.List(ctx)
	assert.Equal(t, storage.BackendKV, backend)
	require.Len(t, leads, 3)
	assert.Equal(t, "e", leads[0].ID)

	deleted, backend := repo.Delete(ctx, "d")
	assert.True(t, deleted)
	assert.Equal(t, storage.BackendKV, backend)

	mr.Close()
	assert.Equal(t, storage.BackendFS, repo.Append(ctx, &Lead{ID: "f"}))
	leads, backend = repo.List(ctx)
	assert.Equal(t, storage.BackendFS, backend)
	require.Len(t, leads, 1)
	assert.Equal(t, "f", leads[0].ID)
}

func TestNumberDecoding(t *testing.T) {
	cases := map[string]*float64{
		`12.5`:     ptr(12.5),
		`" 80 "`:   ptr(80),
		`"1e3"`:    ptr(1000),
		`""`:       nil,
		`"12abc"`:  nil,
		`null`:     nil,
		`true`:     nil,
		`{"a":1}`:  nil,
		`"NaN"`:    nil,
		`"-Inf"`:   nil,
	}
	for raw, want := range cases {
		var n Number
		require.NoError(t, json.Unmarshal([]byte(raw), &n), raw)
		if want == nil {
			assert.Nil(t, n.Value, raw)
			continue
		}
		require.NotNil(t, n.Value, raw)
		assert.Equal(t, *want, *n.Value, raw)
	}
}

func ptr(v float64) *float64 { return &v }
