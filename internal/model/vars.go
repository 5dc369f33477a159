package model

import "github.com/zeromicro/go-zero/core/stores/sqlc"

// ErrNotFound is an alias of sqlc.ErrNotFound.
var ErrNotFound = sqlc.ErrNotFound
