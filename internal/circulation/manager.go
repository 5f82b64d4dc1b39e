package circulation

import (
	"context"

	"github.com/google/uuid"

	"libraflow/internal/catalog"
	dErrors "libraflow/pkg/domainerrors"
)

// TransactionManager is the direct borrow/return/revoke entry point used
// outside the undoable command path.
type TransactionManager struct {
	engine *Engine
}

func NewTransactionManager(engine *Engine) *TransactionManager {
	return &TransactionManager{engine: engine}
}

// BorrowItem only lends items that are Available. Reserved items must be
// claimed through Engine.Borrow so the queue is honoured.
func (m *TransactionManager) BorrowItem(ctx context.Context, itemID, userID uuid.UUID) (*Transaction, error) {
	var tx *Transaction
	err := m.engine.withMemberLock(ctx, userID, func() error {
		return m.engine.run(ctx, catalog.TriggerBorrow, itemID, userID, func(t *transition, st itemState) error {
			if t.item.Status != catalog.Available {
				return dErrors.Newf(dErrors.CodeInvalidTransition, "%q is not available (current status: %s)", t.item.Title, t.item.Status)
			}
			var err error
			tx, err = st.borrow(t)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (m *TransactionManager) ReturnItem(ctx context.Context, itemID, userID uuid.UUID) (*Transaction, error) {
	return m.engine.Return(ctx, itemID, userID, false)
}

func (m *TransactionManager) RevokeBorrow(ctx context.Context, itemID, userID uuid.UUID) error {
	return m.engine.Revoke(ctx, itemID, userID)
}
