package repo

import (
	"context"
	"testing"

	"github.com/abdusco/affiliated/internal"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopLinksOrderedByCollected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	partner := createPartner(t, s, "Acme")
	zero := createLink(t, s, partner.ID, "zero")
	fifty := createLink(t, s, partner.ID, "fifty")
	hundred := createLink(t, s, partner.ID, "hundred")

	createTransaction(t, s, fifty.ID, 20, internal.TransactionPending)
	createTransaction(t, s, fifty.ID, 30, internal.TransactionPaid)
	createTransaction(t, s, hundred.ID, 100, internal.TransactionCancelled)

	overview, err := s.Overview(ctx)
	require.NoError(t, err)

	ids := lo.Map(overview.TopLinks, func(l *internal.Link, _ int) int64 { return l.ID })
	assert.Equal(t, []int64{hundred.ID, fifty.ID, zero.ID}, ids)
	assert.InDelta(t, 100.0, overview.TopLinks[0].Stats.TotalCollected, 0.001)
	assert.InDelta(t, 50.0, overview.TopLinks[1].Stats.TotalCollected, 0.001)
	assert.InDelta(t, 0.0, overview.TopLinks[2].Stats.TotalCollected, 0.001)
}

func TestTopLinksTiesKeepCreationOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	partner := createPartner(t, s, "Acme")
	var ids []int64
	for _, brand := range []string{"a", "b", "c", "d", "e", "f"} {
		ids = append(ids, createLink(t, s, partner.ID, brand).ID)
	}
	createTransaction(t, s, ids[5], 10, internal.TransactionPending)

	overview, err := s.Overview(ctx)
	require.NoError(t, err)

	got := lo.Map(overview.TopLinks, func(l *internal.Link, _ int) int64 { return l.ID })
	assert.Equal(t, []int64{ids[5], ids[0], ids[1], ids[2], ids[3]}, got)
}

func TestOverview(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	acme := createPartner(t, s, "Acme")
	inactive := internal.PartnerInactive
	other, err := s.CreatePartner(ctx, PartnerInput{Name: "Other", Platform: "Amazon", Status: inactive})
	require.NoError(t, err)

	a := createLink(t, s, acme.ID, "a")
	b := createLink(t, s, other.ID, "b")
	expired := internal.LinkExpired
	_, err = s.UpdateLink(ctx, b.ID, LinkUpdate{Status: &expired})
	require.NoError(t, err)

	recordClicks(t, s, a.ID, 8)
	recordClicks(t, s, b.ID, 4)
	for range 12 {
		createTransaction(t, s, a.ID, 1.10, internal.TransactionPending)
	}
	paid := createTransaction(t, s, b.ID, 4, internal.TransactionPending)
	_, err = s.UpdateTransaction(ctx, paid.ID, TransactionUpdate{
		Status:     lo.ToPtr(internal.TransactionPaid),
		AmountPaid: lo.ToPtr(3.5),
	})
	require.NoError(t, err)

	overview, err := s.Overview(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), overview.TotalPartners)
	assert.Equal(t, int64(1), overview.ActivePartners)
	assert.Equal(t, int64(2), overview.TotalLinks)
	assert.Equal(t, int64(1), overview.ActiveLinks)
	assert.Equal(t, int64(12), overview.TotalClicks)
	assert.InDelta(t, 17.2, overview.TotalCollected, 0.001)
	assert.InDelta(t, 3.5, overview.TotalPaid, 0.001)
	assert.InDelta(t, 13.2, overview.PendingAmount, 0.001)
	assert.InDelta(t, 13.0/12.0*100, overview.ConversionRate, 0.001)

	require.Len(t, overview.RecentClicks, 10)
	for i := 1; i < len(overview.RecentClicks); i++ {
		assert.False(t, overview.RecentClicks[i].ClickedAt.After(overview.RecentClicks[i-1].ClickedAt))
	}
	assert.Equal(t, b.ID, overview.RecentClicks[0].LinkID)

	require.Len(t, overview.RecentTransactions, 10)
	assert.Equal(t, paid.ID, overview.RecentTransactions[0].ID)
	assert.Equal(t, "b", overview.RecentTransactions[0].BrandName)
	for i := 1; i < len(overview.RecentTransactions); i++ {
		assert.False(t, overview.RecentTransactions[i].TransactionDate.After(overview.RecentTransactions[i-1].TransactionDate))
	}
}

func TestOverviewReadsOneSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	link := createLink(t, s, createPartner(t, s, "Acme").ID, "shoes")
	recordClicks(t, s, link.ID, 2)

	err := s.inReadTx(ctx, func(sess *Session) error {
		before, err := sess.Overview(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), before.TotalClicks)

		recordClicks(t, s, link.ID, 1)

		after, err := sess.Overview(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), after.TotalClicks)
		assert.Len(t, after.RecentClicks, 2)
		return nil
	})
	require.NoError(t, err)

	overview, err := s.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), overview.TotalClicks)
	assert.Len(t, overview.RecentClicks, 3)
}

func TestOverviewEmptyStore(t *testing.T) {
	s := newTestStore(t)

	overview, err := s.Overview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, overview.TotalPartners)
	assert.Zero(t, overview.TotalClicks)
	assert.Zero(t, overview.ConversionRate)
	assert.Empty(t, overview.RecentClicks)
	assert.Empty(t, overview.RecentTransactions)
	assert.Empty(t, overview.TopLinks)
}

func TestPartnerStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	partner := createPartner(t, s, "Acme")
	other := createPartner(t, s, "Other")

	a := createLink(t, s, partner.ID, "a")
	b := createLink(t, s, partner.ID, "b")
	inactive := internal.LinkInactive
	_, err := s.UpdateLink(ctx, b.ID, LinkUpdate{Status: &inactive})
	require.NoError(t, err)
	c := createLink(t, s, other.ID, "c")

	recordClicks(t, s, a.ID, 3)
	recordClicks(t, s, b.ID, 1)
	recordClicks(t, s, c.ID, 10)
	createTransaction(t, s, a.ID, 10, internal.TransactionPending)
	createTransaction(t, s, b.ID, 5, internal.TransactionCancelled)
	createTransaction(t, s, c.ID, 100, internal.TransactionPending)

	stats, err := s.PartnerStats(ctx, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalLinks)
	assert.Equal(t, int64(1), stats.ActiveLinks)
	assert.Equal(t, int64(4), stats.TotalClicks)
	assert.Equal(t, int64(2), stats.TotalTransactions)
	assert.InDelta(t, 15.0, stats.TotalCollected, 0.001)
	assert.InDelta(t, 10.0, stats.PendingAmount, 0.001)
	assert.InDelta(t, 50.0, stats.ConversionRate, 0.001)

	_, err = s.PartnerStats(ctx, 999)
	assert.Equal(t, internal.KindNotFound, internal.Kind(err))

	got, err := s.GetPartner(ctx, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TotalLinks)
	assert.Equal(t, int64(1), got.ActiveLinks)
}

func TestListLinksFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	acme := createPartner(t, s, "Acme")
	other := createPartner(t, s, "Other")
	a1 := createLink(t, s, acme.ID, "a1")
	a2 := createLink(t, s, acme.ID, "a2")
	o1 := createLink(t, s, other.ID, "o1")

	expired := internal.LinkExpired
	_, err := s.UpdateLink(ctx, a2.ID, LinkUpdate{Status: &expired})
	require.NoError(t, err)

	linkIDs := func(filter LinkFilter) []int64 {
		links, err := s.ListLinks(ctx, filter)
		require.NoError(t, err)
		return lo.Map(links, func(l *internal.Link, _ int) int64 { return l.ID })
	}

	assert.ElementsMatch(t, []int64{a1.ID, a2.ID, o1.ID}, linkIDs(LinkFilter{}))
	assert.ElementsMatch(t, []int64{a1.ID, a2.ID}, linkIDs(LinkFilter{PartnerID: &acme.ID}))
	assert.ElementsMatch(t, []int64{a2.ID}, linkIDs(LinkFilter{Status: &expired}))
	assert.ElementsMatch(t, []int64{a2.ID}, linkIDs(LinkFilter{PartnerID: &acme.ID, Status: &expired}))
	assert.Empty(t, linkIDs(LinkFilter{PartnerID: &other.ID, Status: &expired}))

	links, err := s.ListLinks(ctx, LinkFilter{PartnerID: &other.ID})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.NotNil(t, links[0].Stats)
	assert.Equal(t, "Other", links[0].PartnerName)
}

func TestListTransactionsFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	partner := createPartner(t, s, "Acme")
	a := createLink(t, s, partner.ID, "a")
	b := createLink(t, s, partner.ID, "b")

	t1 := createTransaction(t, s, a.ID, 1, internal.TransactionPending)
	t2 := createTransaction(t, s, b.ID, 2, internal.TransactionPending)
	t3 := createTransaction(t, s, a.ID, 3, internal.TransactionPaid)
	t4 := createTransaction(t, s, a.ID, 4, internal.TransactionPending)

	txIDs := func(filter TransactionFilter) []int64 {
		txs, err := s.ListTransactions(ctx, filter)
		require.NoError(t, err)
		return lo.Map(txs, func(tx *internal.Transaction, _ int) int64 { return tx.ID })
	}

	pending := internal.TransactionPending
	assert.Equal(t, []int64{t4.ID, t3.ID, t2.ID, t1.ID}, txIDs(TransactionFilter{}))
	assert.Equal(t, []int64{t4.ID, t3.ID, t1.ID}, txIDs(TransactionFilter{LinkID: &a.ID}))
	assert.Equal(t, []int64{t4.ID, t2.ID, t1.ID}, txIDs(TransactionFilter{Status: &pending}))
	assert.Equal(t, []int64{t4.ID, t1.ID}, txIDs(TransactionFilter{LinkID: &a.ID, Status: &pending}))
}
