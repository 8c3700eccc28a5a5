package mocks

import (
	"context"

	"github.com/jmoiron/sqlx"

	"lodge/infras/postgres"
)

type txRunner struct {
}

// WithTx implements postgres.TxRunner. The callback receives a nil
// transaction; mocked repositories never dereference it.
func (t *txRunner) WithTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

func NewTxRunner() postgres.TxRunner {
	return &txRunner{}
}
