package expense

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpenseRepo struct {
	records map[uuid.UUID]*Record
	order   []uuid.UUID
}

func newFakeExpenseRepo() *fakeExpenseRepo {
	return &fakeExpenseRepo{records: map[uuid.UUID]*Record{}}
}

func (f *fakeExpenseRepo) add(rec Record) uuid.UUID {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	f.records[rec.ID] = &rec
	f.order = append(f.order, rec.ID)
	return rec.ID
}

func (f *fakeExpenseRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeExpenseRepo) List(_ context.Context, filter ListFilter, opts ListOptions) ([]Record, int, error) {
	var all []Record
	for _, id := range f.order {
		rec := f.records[id]
		if filter.Channel != "" && rec.Channel != filter.Channel {
			continue
		}
		if filter.Hidden != nil && rec.IsHidden != *filter.Hidden {
			continue
		}
		all = append(all, *rec)
	}
	opts = opts.Normalize()
	start := (opts.Page - 1) * opts.PerPage
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := start + opts.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (f *fakeExpenseRepo) Update(_ context.Context, id uuid.UUID, p UpdateParams) (*Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.CategoryL1 != nil {
		rec.CategoryL1 = p.CategoryL1
	}
	if p.CategoryL2 != nil {
		rec.CategoryL2 = p.CategoryL2
	}
	if p.Notes != nil {
		rec.Notes = p.Notes
	}
	if p.IsHidden != nil {
		rec.IsHidden = *p.IsHidden
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeExpenseRepo) Confirm(_ context.Context, id uuid.UUID, l1, l2 string) (*Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.CategoryL1 = &l1
	if l2 != "" {
		rec.CategoryL2 = &l2
	}
	rec.IsConfirmedByUser = true
	cp := *rec
	return &cp, nil
}

func (f *fakeExpenseRepo) SetHidden(_ context.Context, ids []uuid.UUID, hidden bool) (int64, error) {
	var n int64
	for _, id := range ids {
		if rec, ok := f.records[id]; ok {
			rec.IsHidden = hidden
			n++
		}
	}
	return n, nil
}

func (f *fakeExpenseRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.records[id]; !ok {
		return ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeExpenseRepo) DeleteBatch(_ context.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := f.records[id]; ok {
			delete(f.records, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeExpenseRepo) ClearCategories(_ context.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if rec, ok := f.records[id]; ok {
			rec.CategoryL1 = nil
			rec.CategoryL2 = nil
			rec.IsConfirmedByUser = false
			n++
		}
	}
	return n, nil
}

func (f *fakeExpenseRepo) ListUnclassified(_ context.Context, limit int) ([]Record, error) {
	var out []Record
	for _, id := range f.order {
		rec := f.records[id]
		if rec.CategoryL1 == nil && rec.AISuggestionL1 == nil && !rec.IsHidden {
			out = append(out, *rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeExpenseRepo) SaveSuggestion(_ context.Context, id uuid.UUID, s Suggestion) error {
	rec, ok := f.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.AISuggestionL1 = &s.L1
	if s.L2 != "" {
		rec.AISuggestionL2 = &s.L2
	}
	rec.IsClassifiedByAI = true
	return nil
}

func fakeRecord() Record {
	return Record{
		TransactionTime:       gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now()),
		Amount:                decimal.NewFromFloat(-gofakeit.Price(1, 500)).Round(2),
		Currency:              DefaultCurrency,
		Channel:               ChannelWeChatPay,
		SourceRawDescription:  gofakeit.Company(),
		DescriptionForAI:      gofakeit.Company(),
		ExternalTransactionID: gofakeit.UUID(),
	}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestServiceConfirm(t *testing.T) {
	repo := newFakeExpenseRepo()
	id := repo.add(fakeRecord())
	svc := newTestService(repo)

	rec, err := svc.Confirm(context.Background(), id, "餐饮", "咖啡")
	require.NoError(t, err)
	assert.True(t, rec.IsConfirmedByUser)
	require.NotNil(t, rec.CategoryL1)
	assert.Equal(t, "餐饮", *rec.CategoryL1)

	_, err = svc.Confirm(context.Background(), id, "  ", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Confirm(context.Background(), id, "餐饮", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Confirm(context.Background(), uuid.New(), "餐饮", "咖啡")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceUpdateValidation(t *testing.T) {
	repo := newFakeExpenseRepo()
	id := repo.add(fakeRecord())
	svc := newTestService(repo)

	_, err := svc.Update(context.Background(), id, UpdateParams{})
	assert.ErrorIs(t, err, ErrValidation)

	l2 := "咖啡"
	_, err = svc.Update(context.Background(), id, UpdateParams{CategoryL2: &l2})
	assert.ErrorIs(t, err, ErrValidation)

	notes := "团建"
	rec, err := svc.Update(context.Background(), id, UpdateParams{Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, rec.Notes)
	assert.Equal(t, "团建", *rec.Notes)
}

func TestServiceListPagination(t *testing.T) {
	repo := newFakeExpenseRepo()
	for i := 0; i < 5; i++ {
		repo.add(fakeRecord())
	}
	svc := newTestService(repo)

	page, err := svc.List(context.Background(), ListFilter{}, ListOptions{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Records, 2)
	assert.Equal(t, 2, page.Page)

	page, err = svc.List(context.Background(), ListFilter{}, ListOptions{Page: 99, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
}

func TestServiceSetHidden(t *testing.T) {
	repo := newFakeExpenseRepo()
	a := repo.add(fakeRecord())
	b := repo.add(fakeRecord())
	svc := newTestService(repo)

	n, err := svc.SetHidden(context.Background(), []uuid.UUID{a, b, uuid.New()}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, repo.records[a].IsHidden)

	_, err = svc.SetHidden(context.Background(), nil, true)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestServiceDeleteBatch(t *testing.T) {
	repo := newFakeExpenseRepo()
	a := repo.add(fakeRecord())
	b := repo.add(fakeRecord())
	svc := newTestService(repo)

	n, err := svc.DeleteBatch(context.Background(), []uuid.UUID{a, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = svc.Get(context.Background(), a)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(context.Background(), b)
	assert.NoError(t, err)

	_, err = svc.DeleteBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestServiceClearCategories(t *testing.T) {
	repo := newFakeExpenseRepo()
	id := repo.add(fakeRecord())
	svc := newTestService(repo)

	_, err := svc.Confirm(context.Background(), id, "餐饮", "咖啡")
	require.NoError(t, err)

	n, err := svc.ClearCategories(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, rec.CategoryL1)
	assert.False(t, rec.IsConfirmedByUser)

	_, err = svc.ClearCategories(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestServiceExportCSV(t *testing.T) {
	repo := newFakeExpenseRepo()
	rec := fakeRecord()
	rec.TransactionTime = time.Date(2024, 1, 5, 10, 0, 0, 0, time.Local)
	rec.Amount = decimal.RequireFromString("-45")
	rec.DescriptionForAI = "肯德基 - 宅急送订单"
	l1 := "餐饮"
	rec.CategoryL1 = &l1
	repo.add(rec)
	svc := newTestService(repo)

	var buf strings.Builder
	require.NoError(t, svc.ExportCSV(context.Background(), &buf, ListFilter{}))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "transaction_time")
	assert.Contains(t, lines[1], "2024-01-05 10:00:00")
	assert.Contains(t, lines[1], "-45.00")
	assert.Contains(t, lines[1], "肯德基 - 宅急送订单")
	assert.Contains(t, lines[1], "餐饮")
}

func TestServiceExportCSVEmpty(t *testing.T) {
	svc := newTestService(newFakeExpenseRepo())

	var buf strings.Builder
	require.NoError(t, svc.ExportCSV(context.Background(), &buf, ListFilter{}))
	assert.Contains(t, buf.String(), "transaction_time")
}
