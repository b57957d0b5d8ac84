package repository

import "context"

// PostgresStore is the pgx-backed Store. The zero transaction state wraps a
// pool; inside WithTx it wraps the pgx.Tx.
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Conversations() ConversationRepository {
	return NewConversationRepository(s.db)
}

func (s *PostgresStore) Messages() MessageRepository {
	return NewMessageRepository(s.db)
}

func (s *PostgresStore) Reactions() ReactionRepository {
	return NewReactionRepository(s.db)
}

func (s *PostgresStore) Profiles() ProfileRepository {
	return NewProfileRepository(s.db)
}

func (s *PostgresStore) Outbox() OutboxRepository {
	return NewOutboxRepository(s.db)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return WithTx(ctx, s.db, func(tx DBTX) error {
		return fn(&PostgresStore{db: tx})
	})
}
