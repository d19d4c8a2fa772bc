package intentstore

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
	"github.com/speedrun-hq/speedrun-commerce/pkg/models"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS signed_intents (
    operator BYTEA NOT NULL,
    id BYTEA NOT NULL,
    payer BYTEA NOT NULL,
    recipient BYTEA NOT NULL,
    recipient_currency BYTEA NOT NULL,
    refund_destination BYTEA NOT NULL,
    recipient_amount TEXT NOT NULL,
    fee_amount TEXT NOT NULL,
    deadline TEXT NOT NULL,
    prefix BYTEA NOT NULL,
    signature BYTEA NOT NULL,
    status TEXT NOT NULL,
    tx_hash BYTEA,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (operator, id)
);
`

const selectColumns = `
SELECT operator, id, payer, recipient, recipient_currency, refund_destination,
       recipient_amount, fee_amount, deadline, prefix, signature, status, tx_hash,
       created_at, updated_at
FROM signed_intents
`

// PostgresStore persists records in a PostgreSQL table
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects using the DSN and ensures the table exists
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse postgres dsn")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to create signed_intents table")
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Ping checks the database connection, used by the readiness probe
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Save(ctx context.Context, record Record) error {
	if record.Intent == nil {
		return errors.New("record has no intent")
	}
	in := record.Intent

	tag, err := p.pool.Exec(ctx, `
INSERT INTO signed_intents (operator, id, payer, recipient, recipient_currency, refund_destination,
    recipient_amount, fee_amount, deadline, prefix, signature, status, tx_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (operator, id) DO NOTHING
`,
		in.Operator.Bytes(), in.ID.Bytes(), record.Payer.Bytes(), in.Recipient.Bytes(),
		in.RecipientCurrency.Bytes(), in.RefundDestination.Bytes(),
		in.RecipientAmount.String(), in.FeeAmount.String(), in.Deadline.String(),
		nonNil(in.Prefix), in.Signature, record.Status, txHashBytes(record.TxHash),
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert intent")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrDuplicate, "intent %s", in.ID.Hex())
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, operator common.Address, id commerce.IntentID) (*Record, error) {
	row := p.pool.QueryRow(ctx, selectColumns+`WHERE operator = $1 AND id = $2`, operator.Bytes(), id.Bytes())

	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "intent %s", id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (p *PostgresStore) MarkSubmitted(ctx context.Context, operator common.Address, id commerce.IntentID, txHash common.Hash) error {
	tag, err := p.pool.Exec(ctx, `
UPDATE signed_intents
SET status = $3, tx_hash = $4, updated_at = $5
WHERE operator = $1 AND id = $2
`, operator.Bytes(), id.Bytes(), models.StatusSubmitted, txHash.Bytes(), time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to update intent")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "intent %s", id.Hex())
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, status string) ([]Record, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = p.pool.Query(ctx, selectColumns+`ORDER BY created_at`)
	} else {
		rows, err = p.pool.Query(ctx, selectColumns+`WHERE status = $1 ORDER BY created_at`, status)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list intents")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		operator, id, payer, recipient, currency, refund []byte
		recipientAmount, feeAmount, deadline, status     string
		prefix, signature, txHash                        []byte
		createdAt, updatedAt                             time.Time
	)
	err := row.Scan(&operator, &id, &payer, &recipient, &currency, &refund,
		&recipientAmount, &feeAmount, &deadline, &prefix, &signature, &status, &txHash,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	intentID, err := commerce.ParseIntentID(id)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt intent id")
	}
	amounts := make([]*big.Int, 3)
	for i, s := range []string{recipientAmount, feeAmount, deadline} {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, errors.Errorf("corrupt amount %q for intent %s", s, intentID.Hex())
		}
		amounts[i] = v
	}

	record := &Record{
		Intent: &commerce.SignedTransferIntent{
			TransferIntent: commerce.TransferIntent{
				RecipientAmount:   amounts[0],
				FeeAmount:         amounts[1],
				Deadline:          amounts[2],
				Recipient:         common.BytesToAddress(recipient),
				RecipientCurrency: common.BytesToAddress(currency),
				RefundDestination: common.BytesToAddress(refund),
				ID:                intentID,
				Operator:          common.BytesToAddress(operator),
				Prefix:            nonNil(prefix),
			},
			Signature: signature,
		},
		Payer:     common.BytesToAddress(payer),
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if len(txHash) > 0 {
		record.TxHash = common.BytesToHash(txHash)
	}
	return record, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func txHashBytes(h common.Hash) []byte {
	if h == (common.Hash{}) {
		return nil
	}
	return h.Bytes()
}
