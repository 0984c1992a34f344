package repository

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/marketplace-negotiation/internal/model"
    "github.com/iliyamo/marketplace-negotiation/internal/money"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

var (
    t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    t1 = t0.Add(time.Minute)
)

func brl(s string) money.Money { return money.MustParse(s, "BRL") }

// sample is a negotiation countered once by the provider.
func sample() model.Negotiation {
    return model.Negotiation{
        ID:            "3f1c3c52-2f55-4a41-9a3f-7b1e6d0c0a01",
        ServiceID:     "svc-1",
        ServiceTitle:  "Logo design",
        ClientID:      "client-1",
        ProviderID:    "provider-1",
        OriginalPrice: brl("150"),
        CurrentOffer:  brl("130"),
        Status:        model.StatusCountered,
        Version:       2,
        CreatedAt:     t0,
        UpdatedAt:     t1,
        History: []model.HistoryEntry{
            {Seq: 1, Action: model.ActionCreate, ActorID: "client-1", ToStatus: model.StatusPending, Offer: brl("100"), OccurredAt: t0},
            {Seq: 2, Action: model.ActionCounter, ActorID: "provider-1", FromStatus: model.StatusPending, ToStatus: model.StatusCountered, Offer: brl("130"), OccurredAt: t1},
        },
    }
}

func newMock(t *testing.T) (*NegotiationRepo, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() {
        assert.NoError(t, mock.ExpectationsWereMet())
        _ = db.Close()
    })
    return NewNegotiationRepo(db), mock
}

func negotiationRows(n model.Negotiation, status string) *sqlmock.Rows {
    return sqlmock.NewRows([]string{"id", "service_id", "service_title", "client_id", "provider_id", "currency",
        "original_price", "current_offer", "status", "version", "created_at", "updated_at"}).
        AddRow(n.ID, n.ServiceID, n.ServiceTitle, n.ClientID, n.ProviderID, "BRL",
            "150.0000", "130.0000", status, n.Version, n.CreatedAt, n.UpdatedAt)
}

func historyRows(n model.Negotiation) *sqlmock.Rows {
    rows := sqlmock.NewRows([]string{"negotiation_id", "seq", "action", "actor_id", "from_status", "to_status", "offer", "occurred_at"})
    for _, h := range n.History {
        rows.AddRow(n.ID, h.Seq, string(h.Action), h.ActorID, string(h.FromStatus), string(h.ToStatus),
            h.Offer.Amount().StringFixed(4), h.OccurredAt)
    }
    return rows
}

func TestCreateInsertsNegotiationAndHistory(t *testing.T) {
    repo, mock := newMock(t)
    n := sample()
    n.History = n.History[:1]
    n.Status = model.StatusPending
    n.CurrentOffer = brl("100")
    n.Version = 1
    n.UpdatedAt = t0

    mock.ExpectBegin()
    mock.ExpectExec("INSERT INTO negotiations").
        WithArgs(n.ID, "svc-1", "Logo design", "client-1", "provider-1", "BRL", "150", "100", "PENDING", int64(1), t0, t0).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec("INSERT INTO negotiation_history").
        WithArgs(n.ID, int64(1), "CREATE", "client-1", "", "PENDING", "100", t0).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    got, err := repo.Create(context.Background(), n)
    require.NoError(t, err)
    assert.Equal(t, n, got)
}

func TestCreateMapsDuplicateKey(t *testing.T) {
    repo, mock := newMock(t)

    mock.ExpectBegin()
    mock.ExpectExec("INSERT INTO negotiations").
        WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_negotiations_open'"})
    mock.ExpectRollback()

    _, err := repo.Create(context.Background(), sample())
    assert.ErrorIs(t, err, negotiation.ErrDuplicateOpenNegotiation)
    assert.NotErrorIs(t, err, negotiation.ErrStoreUnavailable)
}

func TestCreateWrapsConnectionErrors(t *testing.T) {
    repo, mock := newMock(t)
    refused := errors.New("dial tcp 10.0.0.5:3306: connection refused")
    mock.ExpectBegin().WillReturnError(refused)

    _, err := repo.Create(context.Background(), sample())
    assert.ErrorIs(t, err, negotiation.ErrStoreUnavailable)
    assert.ErrorIs(t, err, refused)
}

func TestGetByIDRoundTrip(t *testing.T) {
    repo, mock := newMock(t)
    n := sample()

    mock.ExpectQuery("FROM negotiations WHERE id = ?").WithArgs(n.ID).WillReturnRows(negotiationRows(n, "COUNTERED"))
    mock.ExpectQuery("FROM negotiation_history").WithArgs(n.ID).WillReturnRows(historyRows(n))

    got, err := repo.GetByID(context.Background(), n.ID)
    require.NoError(t, err)
    assert.Equal(t, n, got)
}

func TestGetByIDNotFound(t *testing.T) {
    repo, mock := newMock(t)
    mock.ExpectQuery("FROM negotiations WHERE id = ?").WithArgs("nope").
        WillReturnRows(sqlmock.NewRows([]string{"id"}))

    _, err := repo.GetByID(context.Background(), "nope")
    assert.ErrorIs(t, err, negotiation.ErrNotFound)
}

func TestGetByIDCorruptStatus(t *testing.T) {
    repo, mock := newMock(t)
    n := sample()
    mock.ExpectQuery("FROM negotiations WHERE id = ?").WithArgs(n.ID).WillReturnRows(negotiationRows(n, "HAGGLING"))

    _, err := repo.GetByID(context.Background(), n.ID)
    assert.ErrorIs(t, err, ErrCorruptRow)
}

func TestFindOpen(t *testing.T) {
    repo, mock := newMock(t)
    n := sample()

    mock.ExpectQuery("status IN \\('PENDING', 'COUNTERED'\\)").
        WithArgs("svc-1", "client-1", "provider-1").
        WillReturnRows(sqlmock.NewRows([]string{"id"}))
    open, err := repo.FindOpen(context.Background(), "svc-1", "client-1", "provider-1")
    require.NoError(t, err)
    assert.Nil(t, open)

    mock.ExpectQuery("status IN \\('PENDING', 'COUNTERED'\\)").
        WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(n.ID))
    mock.ExpectQuery("FROM negotiations WHERE id = ?").WithArgs(n.ID).WillReturnRows(negotiationRows(n, "COUNTERED"))
    mock.ExpectQuery("FROM negotiation_history").WillReturnRows(historyRows(n))
    open, err = repo.FindOpen(context.Background(), "svc-1", "client-1", "provider-1")
    require.NoError(t, err)
    require.NotNil(t, open)
    assert.Equal(t, n.ID, open.ID)
}

func TestListForParty(t *testing.T) {
    repo, mock := newMock(t)
    n := sample()

    mock.ExpectQuery("WHERE client_id = \\? OR provider_id = \\?").
        WithArgs("client-1", "client-1").
        WillReturnRows(negotiationRows(n, "COUNTERED"))
    mock.ExpectQuery("FROM negotiation_history").WillReturnRows(historyRows(n))

    list, err := repo.ListForParty(context.Background(), "client-1")
    require.NoError(t, err)
    require.Len(t, list, 1)
    assert.Equal(t, n, list[0])
}

func TestSaveAppendsNewHistory(t *testing.T) {
    repo, mock := newMock(t)
    n := sample()
    n.Status = model.StatusAccepted
    n.Version = 3
    n.History = append(n.History, model.HistoryEntry{
        Seq: 3, Action: model.ActionAccept, ActorID: "client-1",
        FromStatus: model.StatusCountered, ToStatus: model.StatusAccepted, Offer: brl("130"), OccurredAt: t1,
    })

    mock.ExpectBegin()
    mock.ExpectExec("UPDATE negotiations").
        WithArgs("130", "ACCEPTED", int64(3), n.UpdatedAt, n.ID, int64(2)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec("INSERT INTO negotiation_history").
        WithArgs(n.ID, int64(3), "ACCEPT", "client-1", "COUNTERED", "ACCEPTED", "130", t1).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    got, err := repo.Save(context.Background(), n, 2)
    require.NoError(t, err)
    assert.Equal(t, n, got)
}

func TestSaveStaleVersion(t *testing.T) {
    repo, mock := newMock(t)
    n := sample()

    mock.ExpectBegin()
    mock.ExpectExec("UPDATE negotiations").WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectQuery("SELECT version FROM negotiations").WithArgs(n.ID).
        WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
    mock.ExpectRollback()

    _, err := repo.Save(context.Background(), n, 1)
    assert.ErrorIs(t, err, negotiation.ErrStaleNegotiation)
}

func TestSaveUnknownNegotiation(t *testing.T) {
    repo, mock := newMock(t)
    n := sample()

    mock.ExpectBegin()
    mock.ExpectExec("UPDATE negotiations").WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectQuery("SELECT version FROM negotiations").WillReturnRows(sqlmock.NewRows([]string{"version"}))
    mock.ExpectRollback()

    _, err := repo.Save(context.Background(), n, 1)
    assert.ErrorIs(t, err, negotiation.ErrNotFound)
}

func TestSaveRejectsShortHistory(t *testing.T) {
    repo, _ := newMock(t)
    _, err := repo.Save(context.Background(), sample(), 5)
    assert.ErrorIs(t, err, negotiation.ErrInvalidInput)
}
