package model

import (
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ SyncCursorsModel = (*customSyncCursorsModel)(nil)

type (
	// SyncCursorsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customSyncCursorsModel.
	SyncCursorsModel interface {
		syncCursorsModel
	}

	customSyncCursorsModel struct {
		*defaultSyncCursorsModel
	}
)

// NewSyncCursorsModel returns a model for the database table. The engine
// advances cursors through its own upsert statements, so the model is
// deliberately uncached; a row cache here would keep serving pre-run values.
func NewSyncCursorsModel(conn sqlx.SqlConn) SyncCursorsModel {
	return &customSyncCursorsModel{
		defaultSyncCursorsModel: newSyncCursorsModel(conn),
	}
}
