package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// pgUniqueViolation は一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// PostgresStore はPostgreSQLのトランザクションでリポジトリ群を提供するStore実装。
type PostgresStore struct {
	db TxBeginner
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db TxBeginner) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、そのエラーをそのまま返す。
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(newPostgresTx(sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// postgresTx は1つの*sql.Txを共有するリポジトリ群。
type postgresTx struct {
	users    *PostgresUserRepo
	sessions *PostgresSessionRepo
	orgs     *PostgresOrgRepo
	teams    *PostgresTeamRepo
	invites  *PostgresInviteRepo
	events   *PostgresEventRepo
}

func newPostgresTx(q Querier) *postgresTx {
	return &postgresTx{
		users:    NewPostgresUserRepo(q),
		sessions: NewPostgresSessionRepo(q),
		orgs:     NewPostgresOrgRepo(q),
		teams:    NewPostgresTeamRepo(q),
		invites:  NewPostgresInviteRepo(q),
		events:   NewPostgresEventRepo(q),
	}
}

func (t *postgresTx) Users() UserRepository       { return t.users }
func (t *postgresTx) Sessions() SessionRepository { return t.sessions }
func (t *postgresTx) Orgs() OrgRepository         { return t.orgs }
func (t *postgresTx) Teams() TeamRepository       { return t.teams }
func (t *postgresTx) Invites() InviteRepository   { return t.invites }
func (t *postgresTx) Events() EventRepository     { return t.events }

// translateError は一意制約違反をErrDuplicateに変換する。
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}

// idExists は指定テーブルにIDが存在するかどうかを返す。
// tableは呼び出し側の定数のみを渡すこと。
func idExists(ctx context.Context, q Querier, table, id string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s id: %w", table, err)
	}
	return exists, nil
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)
var _ Tx = (*postgresTx)(nil)
