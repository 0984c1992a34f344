package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"

    "github.com/iliyamo/marketplace-negotiation/internal/model"
    "github.com/iliyamo/marketplace-negotiation/internal/money"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

// NegotiationRepo persists negotiations and their history in MySQL.  A
// negotiation row lives in the negotiations table and its transition log in
// negotiation_history, one row per entry keyed by (negotiation_id, seq).
// The version column always equals the number of history rows.  All
// timestamps are stored in UTC with microsecond precision.
type NegotiationRepo struct {
    db *sql.DB
}

// NewNegotiationRepo returns a NegotiationRepo bound to the given database.
func NewNegotiationRepo(db *sql.DB) *NegotiationRepo { return &NegotiationRepo{db: db} }

var _ negotiation.Store = (*NegotiationRepo)(nil)

// DB exposes the underlying handle for callers that need to share it.
func (r *NegotiationRepo) DB() *sql.DB { return r.db }

const negotiationColumns = `id, service_id, service_title, client_id, provider_id, currency,
       original_price, current_offer, status, version, created_at, updated_at`

const historyColumns = `negotiation_id, seq, action, actor_id, from_status, to_status, offer, occurred_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...any) error
}

func scanNegotiation(s rowScanner) (model.Negotiation, error) {
    var (
        n                      model.Negotiation
        currency, orig, offer  string
        status                 string
    )
    if err := s.Scan(&n.ID, &n.ServiceID, &n.ServiceTitle, &n.ClientID, &n.ProviderID, &currency,
        &orig, &offer, &status, &n.Version, &n.CreatedAt, &n.UpdatedAt); err != nil {
        return model.Negotiation{}, err
    }
    var err error
    if n.OriginalPrice, err = money.Parse(orig, currency); err != nil {
        return model.Negotiation{}, fmt.Errorf("%w: negotiation %s original_price: %v", ErrCorruptRow, n.ID, err)
    }
    if n.CurrentOffer, err = money.Parse(offer, currency); err != nil {
        return model.Negotiation{}, fmt.Errorf("%w: negotiation %s current_offer: %v", ErrCorruptRow, n.ID, err)
    }
    n.Status = model.Status(status)
    if !n.Status.Valid() {
        return model.Negotiation{}, fmt.Errorf("%w: negotiation %s status %q", ErrCorruptRow, n.ID, status)
    }
    n.CreatedAt = n.CreatedAt.UTC()
    n.UpdatedAt = n.UpdatedAt.UTC()
    return n, nil
}

// Create inserts the negotiation and its initial history inside one
// transaction.  The unique key over the triple and the generated open_flag
// column rejects a second open negotiation for the same service, client and
// provider.
func (r *NegotiationRepo) Create(ctx context.Context, n model.Negotiation) (model.Negotiation, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return model.Negotiation{}, unavailable("begin create", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    const q = `INSERT INTO negotiations (id, service_id, service_title, client_id, provider_id, currency,
                                         original_price, current_offer, status, version, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    if _, err := tx.ExecContext(ctx, q, n.ID, n.ServiceID, n.ServiceTitle, n.ClientID, n.ProviderID,
        n.OriginalPrice.Currency(), n.OriginalPrice.Amount().String(), n.CurrentOffer.Amount().String(),
        string(n.Status), n.Version, n.CreatedAt, n.UpdatedAt); err != nil {
        if isDuplicateKey(err) {
            return model.Negotiation{}, fmt.Errorf("%w: service %s", negotiation.ErrDuplicateOpenNegotiation, n.ServiceID)
        }
        return model.Negotiation{}, unavailable("insert negotiation", err)
    }
    if err := insertHistoryTx(ctx, tx, n.ID, n.History); err != nil {
        return model.Negotiation{}, err
    }
    if err := tx.Commit(); err != nil {
        return model.Negotiation{}, unavailable("commit create", err)
    }
    committed = true
    return n.Clone(), nil
}

// insertHistoryTx writes history entries in a single multi-row statement.
// Passing an empty slice has no effect.
func insertHistoryTx(ctx context.Context, tx *sql.Tx, negotiationID string, entries []model.HistoryEntry) error {
    if len(entries) == 0 {
        return nil
    }
    query := `INSERT INTO negotiation_history (` + historyColumns + `) VALUES `
    args := make([]any, 0, len(entries)*8)
    for i, h := range entries {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?, ?)"
        args = append(args, negotiationID, h.Seq, string(h.Action), h.ActorID, string(h.FromStatus),
            string(h.ToStatus), h.Offer.Amount().String(), h.OccurredAt)
    }
    if _, err := tx.ExecContext(ctx, query, args...); err != nil {
        return unavailable("insert history", err)
    }
    return nil
}

// GetByID loads a negotiation and its full history.
func (r *NegotiationRepo) GetByID(ctx context.Context, id string) (model.Negotiation, error) {
    q := `SELECT ` + negotiationColumns + ` FROM negotiations WHERE id = ?`
    n, err := scanNegotiation(r.db.QueryRowContext(ctx, q, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.Negotiation{}, fmt.Errorf("%w: %s", negotiation.ErrNotFound, id)
        }
        if errors.Is(err, ErrCorruptRow) {
            return model.Negotiation{}, err
        }
        return model.Negotiation{}, unavailable("get negotiation", err)
    }
    byID := map[string]*model.Negotiation{n.ID: &n}
    if err := r.loadHistory(ctx, byID); err != nil {
        return model.Negotiation{}, err
    }
    return n, nil
}

// FindOpen returns the PENDING or COUNTERED negotiation for the triple, or nil.
func (r *NegotiationRepo) FindOpen(ctx context.Context, serviceID, clientID, providerID string) (*model.Negotiation, error) {
    const q = `SELECT id FROM negotiations
               WHERE service_id = ? AND client_id = ? AND provider_id = ?
                 AND status IN ('PENDING', 'COUNTERED')
               LIMIT 1`
    var id string
    err := r.db.QueryRowContext(ctx, q, serviceID, clientID, providerID).Scan(&id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, nil
        }
        return nil, unavailable("find open negotiation", err)
    }
    n, err := r.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    return &n, nil
}

// ListForParty returns every negotiation where partyID is the client or the
// provider, newest update first, with histories populated in one query.
func (r *NegotiationRepo) ListForParty(ctx context.Context, partyID string) ([]model.Negotiation, error) {
    q := `SELECT ` + negotiationColumns + ` FROM negotiations
          WHERE client_id = ? OR provider_id = ?
          ORDER BY updated_at DESC, id`
    rows, err := r.db.QueryContext(ctx, q, partyID, partyID)
    if err != nil {
        return nil, unavailable("list negotiations", err)
    }
    defer rows.Close()
    out := make([]model.Negotiation, 0)
    for rows.Next() {
        n, err := scanNegotiation(rows)
        if err != nil {
            if errors.Is(err, ErrCorruptRow) {
                return nil, err
            }
            return nil, unavailable("scan negotiation", err)
        }
        out = append(out, n)
    }
    if err := rows.Err(); err != nil {
        return nil, unavailable("list negotiations", err)
    }
    if len(out) == 0 {
        return out, nil
    }
    byID := make(map[string]*model.Negotiation, len(out))
    for i := range out {
        byID[out[i].ID] = &out[i]
    }
    if err := r.loadHistory(ctx, byID); err != nil {
        return nil, err
    }
    return out, nil
}

// loadHistory fills History for every negotiation in byID.  Offers are read
// in the owning negotiation's currency.
func (r *NegotiationRepo) loadHistory(ctx context.Context, byID map[string]*model.Negotiation) error {
    ids := make([]any, 0, len(byID))
    placeholders := make([]string, 0, len(byID))
    for id := range byID {
        ids = append(ids, id)
        placeholders = append(placeholders, "?")
    }
    q := `SELECT ` + historyColumns + ` FROM negotiation_history
          WHERE negotiation_id IN (` + strings.Join(placeholders, ",") + `)
          ORDER BY negotiation_id, seq`
    rows, err := r.db.QueryContext(ctx, q, ids...)
    if err != nil {
        return unavailable("load history", err)
    }
    defer rows.Close()
    for rows.Next() {
        var (
            negID, action, from, to, offer string
            h                              model.HistoryEntry
        )
        if err := rows.Scan(&negID, &h.Seq, &action, &h.ActorID, &from, &to, &offer, &h.OccurredAt); err != nil {
            return unavailable("scan history", err)
        }
        n, ok := byID[negID]
        if !ok {
            continue
        }
        h.Action = model.Action(action)
        h.FromStatus = model.Status(from)
        h.ToStatus = model.Status(to)
        h.OccurredAt = h.OccurredAt.UTC()
        if h.Offer, err = money.Parse(offer, n.OriginalPrice.Currency()); err != nil {
            return fmt.Errorf("%w: history %s/%d offer: %v", ErrCorruptRow, negID, h.Seq, err)
        }
        n.History = append(n.History, h)
    }
    if err := rows.Err(); err != nil {
        return unavailable("load history", err)
    }
    return nil
}

// Save performs an optimistic-concurrency update: the row is only changed
// when its version still equals expectedVersion.  The history entries after
// expectedVersion are appended in the same transaction.
func (r *NegotiationRepo) Save(ctx context.Context, n model.Negotiation, expectedVersion int64) (model.Negotiation, error) {
    if int64(len(n.History)) < expectedVersion {
        return model.Negotiation{}, fmt.Errorf("%w: history shorter than version %d", negotiation.ErrInvalidInput, expectedVersion)
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return model.Negotiation{}, unavailable("begin save", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    const q = `UPDATE negotiations
               SET current_offer = ?, status = ?, version = ?, updated_at = ?
               WHERE id = ? AND version = ?`
    res, err := tx.ExecContext(ctx, q, n.CurrentOffer.Amount().String(), string(n.Status), n.Version,
        n.UpdatedAt, n.ID, expectedVersion)
    if err != nil {
        return model.Negotiation{}, unavailable("update negotiation", err)
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return model.Negotiation{}, unavailable("update negotiation", err)
    }
    if affected == 0 {
        var stored int64
        err := tx.QueryRowContext(ctx, `SELECT version FROM negotiations WHERE id = ?`, n.ID).Scan(&stored)
        if errors.Is(err, sql.ErrNoRows) {
            return model.Negotiation{}, fmt.Errorf("%w: %s", negotiation.ErrNotFound, n.ID)
        }
        if err != nil {
            return model.Negotiation{}, unavailable("check version", err)
        }
        return model.Negotiation{}, fmt.Errorf("%w: expected version %d, stored %d",
            negotiation.ErrStaleNegotiation, expectedVersion, stored)
    }
    if err := insertHistoryTx(ctx, tx, n.ID, n.History[expectedVersion:]); err != nil {
        return model.Negotiation{}, err
    }
    if err := tx.Commit(); err != nil {
        return model.Negotiation{}, unavailable("commit save", err)
    }
    committed = true
    return n.Clone(), nil
}
