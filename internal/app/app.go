// Package app is the client composition root: it owns the API client, the
// session and both diary stores, and coordinates work that spans them.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/and161185/health-diary/internal/apiclient"
	"github.com/and161185/health-diary/internal/config"
	"github.com/and161185/health-diary/internal/guard"
	"github.com/and161185/health-diary/internal/kv"
	"github.com/and161185/health-diary/internal/model"
	"github.com/and161185/health-diary/internal/session"
	"github.com/and161185/health-diary/internal/store"
	"github.com/and161185/health-diary/internal/validate"
)

// Deps are the collaborators of App. Slots and Logger are optional.
type Deps struct {
	Client  *apiclient.Client
	Session *session.Store
	Slots   kv.Slots
	Logger  *zap.Logger
}

// App holds both stores for the lifetime of the process.
type App struct {
	Entries *store.EntryStore
	Family  *store.FamilyStore
	Session *session.Store

	api   *apiclient.Client
	slots kv.Slots
	log   *zap.Logger
}

// New wires the stores to the client and the local cache.
func New(d Deps) *App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	opts := store.Options{Slots: d.Slots, Logger: d.Logger, Validator: validate.New()}
	return &App{
		Entries: store.NewEntryStore(d.Client, opts),
		Family:  store.NewFamilyStore(d.Client, opts),
		Session: d.Session,
		api:     d.Client,
		slots:   d.Slots,
		log:     d.Logger,
	}
}

// Open builds an App from client configuration.
func Open(ctx context.Context, cfg *config.Client, log *zap.Logger) (*App, error) {
	sess, err := session.Open(cfg.Session.Path)
	if err != nil {
		return nil, err
	}
	kcfg := cfg.Cache.KV()
	if kcfg.Path == "" {
		kcfg.Path = defaultCachePath(kcfg.Backend)
	}
	slots, err := kv.Open(ctx, kcfg)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	client := apiclient.New(cfg.API.BaseURL, sess, apiclient.WithTimeout(cfg.API.Timeout), apiclient.WithLogger(log))
	return New(Deps{Client: client, Session: sess, Slots: slots, Logger: log}), nil
}

// defaultCachePath keeps the cache next to the session file.
func defaultCachePath(backend string) string {
	dir := filepath.Dir(session.DefaultPath())
	if backend == kv.BackendSQLite {
		return filepath.Join(dir, "cache.db")
	}
	return filepath.Join(dir, "cache")
}

// Login signs in and stores the session.
func (a *App) Login(ctx context.Context, email, password string) (model.User, error) {
	prev, _ := a.Session.User()
	u, err := a.Session.Login(ctx, a.api, email, password)
	if err != nil {
		return u, err
	}
	a.switchUser(ctx, prev, u)
	return u, nil
}

// Register creates an account and stores the session.
func (a *App) Register(ctx context.Context, name, email, password string) (model.User, error) {
	prev, _ := a.Session.User()
	u, err := a.Session.Register(ctx, a.api, name, email, password)
	if err != nil {
		return u, err
	}
	a.switchUser(ctx, prev, u)
	return u, nil
}

// Logout forgets the session and wipes the cached diary.
func (a *App) Logout(ctx context.Context) error {
	a.reset(ctx)
	return a.Session.Logout()
}

// switchUser drops cached state unless it is known to belong to next.
func (a *App) switchUser(ctx context.Context, prev, next model.User) {
	if prev.ID != "" && prev.ID == next.ID {
		return
	}
	a.reset(ctx)
}

func (a *App) reset(ctx context.Context) {
	a.Entries.Reset(ctx)
	a.Family.Reset(ctx)
}

// RemoveMember deletes a family member unless diary entries still reference it.
// On conflict no request is sent and a *guard.ConflictError is returned.
func (a *App) RemoveMember(ctx context.Context, id string) error {
	if err := guard.Check(id, a.Entries.Entries()); err != nil {
		return err
	}
	return a.Family.DeleteMember(ctx, id)
}

// Rehydrate loads both stores from the local cache.
func (a *App) Rehydrate(ctx context.Context) error {
	return errors.Join(a.Entries.Rehydrate(ctx), a.Family.Rehydrate(ctx))
}

// Sync replaces both stores with the backend's current state.
func (a *App) Sync(ctx context.Context) error {
	if err := a.Family.Refresh(ctx); err != nil {
		return err
	}
	return a.Entries.Refresh(ctx)
}

// Close releases the cache.
func (a *App) Close() error {
	if a.slots == nil {
		return nil
	}
	return a.slots.Close()
}
