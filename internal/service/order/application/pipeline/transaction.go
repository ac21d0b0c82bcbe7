package pipeline

import (
	"context"

	"digigoods/internal/pkg/logger"
)

// TransactionHandler 负责管理后续整条链的事务生命周期
type TransactionHandler struct {
	NextHandler
}

func (h *TransactionHandler) Handle(cctx *CheckoutContext) error {
	outer := cctx.Ctx
	defer func() { cctx.Ctx = outer }()

	err := cctx.Transactor.WithinTransaction(outer, func(txCtx context.Context) error {
		cctx.Ctx = txCtx
		return h.executeNext(cctx)
	})
	if err != nil {
		logger.Ctx(outer).Info().Err(err).Int64("user_id", cctx.UserID).Msg("checkout transaction rolled back")
		return err
	}
	return nil
}
