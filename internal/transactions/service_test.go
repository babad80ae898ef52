package transactions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txgate/txgate/internal/shared"
	_ "github.com/txgate/txgate/testing"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	clock := &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return svc, repo
}

func TestCreateRoundTripsThroughList(t *testing.T) {
	svc, repo := newTestService()
	creator := repo.addUser("inputter@example.com")

	created, err := svc.Create(context.Background(), CreateInput{Title: "Office Supplies", PriceGBP: MustMoney("150.50")}, creator)
	require.NoError(t, err)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Office Supplies", got.Title)
	assert.Equal(t, "150.50", got.PriceGBP.String())
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.ApprovedByID)
	assert.Nil(t, got.ApprovedBy)
	assert.Nil(t, got.ApprovedAt)
	assert.Equal(t, UserRef{ID: creator, Email: "inputter@example.com"}, got.CreatedBy)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, shared.AuditTransactionCreate, repo.audits[0].Action)
	assert.Equal(t, creator, repo.audits[0].ActorID)
}

func TestApproveSetsApprover(t *testing.T) {
	svc, repo := newTestService()
	creator := repo.addUser("inputter@example.com")
	approver := repo.addUser("approver@example.com")

	created, err := svc.Create(context.Background(), CreateInput{Title: "Office Supplies", PriceGBP: MustMoney("150.50")}, creator)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), created.ID, approver)
	require.NoError(t, err)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedByID)
	assert.Equal(t, approver, *got.ApprovedByID)
	assert.Equal(t, "approver@example.com", got.ApprovedBy.Email)
	require.NotNil(t, got.ApprovedAt)
	assert.False(t, got.ApprovedAt.Before(got.CreatedAt))
	assert.Len(t, repo.audits, 2)
}

func TestApproveUnknownIDFailsWithoutUpdate(t *testing.T) {
	svc, repo := newTestService()
	approver := repo.addUser("approver@example.com")

	_, err := svc.Approve(context.Background(), uuid.New(), approver)

	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 0, repo.updates)
	assert.Empty(t, repo.audits)
}

func TestApproveTwiceConflicts(t *testing.T) {
	svc, repo := newTestService()
	creator := repo.addUser("inputter@example.com")
	first := repo.addUser("approver@example.com")
	second := repo.addUser("approver2@example.com")

	created, err := svc.Create(context.Background(), CreateInput{Title: "Taxi", PriceGBP: MustMoney("12")}, creator)
	require.NoError(t, err)
	approved, err := svc.Approve(context.Background(), created.ID, first)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), created.ID, second)
	require.ErrorIs(t, err, shared.ErrConflict)

	again, err := svc.repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *again.ApprovedByID)
	assert.Equal(t, *approved.ApprovedAt, *again.ApprovedAt)
	assert.Equal(t, 1, repo.updates)
}

func TestSelfApprovalIsAllowed(t *testing.T) {
	svc, repo := newTestService()
	user := repo.addUser("both@example.com")

	created, err := svc.Create(context.Background(), CreateInput{Title: "Lunch", PriceGBP: MustMoney("9.99")}, user)
	require.NoError(t, err)
	approved, err := svc.Approve(context.Background(), created.ID, user)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
}

func TestCreateValidation(t *testing.T) {
	cases := map[string]struct {
		input CreateInput
		want  string
	}{
		"blank title":     {CreateInput{Title: "   ", PriceGBP: MustMoney("1")}, "title: is required"},
		"long title":      {CreateInput{Title: strings.Repeat("é", 256), PriceGBP: MustMoney("1")}, "title: must be at most 255 characters"},
		"zero amount":     {CreateInput{Title: "x", PriceGBP: MustMoney("0")}, "priceGBP: must be greater than 0"},
		"negative amount": {CreateInput{Title: "x", PriceGBP: MustMoney("-5")}, "priceGBP: must be greater than 0"},
		"three decimals":  {CreateInput{Title: "x", PriceGBP: MustMoney("1.005")}, "priceGBP: must have at most 2 decimal places"},
		"too large":       {CreateInput{Title: "x", PriceGBP: MustMoney("10000000000")}, "priceGBP: must not exceed 9999999999.99"},
		"huge exponent":   {CreateInput{Title: "x", PriceGBP: Money{Decimal: decimal.New(1, 100000000)}}, "priceGBP: is out of range"},
		"tiny exponent":   {CreateInput{Title: "x", PriceGBP: Money{Decimal: decimal.New(1, -100000000)}}, "priceGBP: is out of range"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, repo := newTestService()
			creator := repo.addUser("inputter@example.com")

			_, err := svc.Create(context.Background(), tc.input, creator)
			require.ErrorIs(t, err, shared.ErrValidation)
			assert.Contains(t, shared.UserSafeMessage(err), tc.want)
			assert.Empty(t, repo.rows)
		})
	}
}

func TestCreateAcceptsMaxTitleAndTrims(t *testing.T) {
	svc, repo := newTestService()
	creator := repo.addUser("inputter@example.com")

	created, err := svc.Create(context.Background(), CreateInput{Title: "  " + strings.Repeat("a", 255) + " ", PriceGBP: MustMoney("9999999999.99")}, creator)
	require.NoError(t, err)
	assert.Len(t, created.Title, 255)
}

func TestCreateIdempotencyKey(t *testing.T) {
	svc, repo := newTestService()
	creator := repo.addUser("inputter@example.com")
	in := CreateInput{Title: "Hotel", PriceGBP: MustMoney("200"), IdempotencyKey: "abc-123"}

	_, err := svc.Create(context.Background(), in, creator)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), in, creator)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, repo.rows, 1)
}

func TestListNewestFirst(t *testing.T) {
	svc, repo := newTestService()
	creator := repo.addUser("inputter@example.com")

	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.Create(context.Background(), CreateInput{Title: title, PriceGBP: MustMoney("1")}, creator)
		require.NoError(t, err)
	}

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{list[0].Title, list[1].Title, list[2].Title})
}
