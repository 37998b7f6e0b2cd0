package main

import (
	"context"
	"time"

	"github.com/paperless-link/dbview/dbview"
)

const storageTimeout = 5 * time.Second

// registry exposes the custom_columns table to an in-process view.
type registry struct {
	s        *Service
	username string
}

var _ dbview.Registry = (*registry)(nil)

func (s *Service) Registry(username string) dbview.Registry {
	return &registry{s: s, username: username}
}

func (r *registry) List(ctx context.Context, stateKey string) ([]dbview.CustomColumnDef, error) {
	columns, err := r.s.ListCustomColumns(ctx, stateKey)
	if err != nil {
		return nil, err
	}
	defs := make([]dbview.CustomColumnDef, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, c.Def())
	}
	return defs, nil
}

func (r *registry) Create(ctx context.Context, stateKey string, col dbview.NewColumn) error {
	_, err := r.s.CreateCustomColumn(ctx, stateKey, CreateCustomColumnRequest{
		ColID:    col.ColID,
		ColLabel: col.ColLabel,
		ColType:  col.ColType,
	}, r.username)
	return err
}

// storage exposes the view_configs table as a view config store.
type storage struct {
	s *Service
}

var _ dbview.Storage = (*storage)(nil)

func (s *Service) Storage() dbview.Storage {
	return &storage{s: s}
}

func (st *storage) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	config, err := st.s.GetViewConfig(ctx, key)
	if err != nil {
		return "", false
	}
	return config, true
}

func (st *storage) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	return st.s.PutViewConfig(ctx, key, value)
}
