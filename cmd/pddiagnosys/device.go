package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/config"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/account"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/portal"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/qrcode"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/reconcile"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/localstore"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncclient"
)

var errNotLoggedIn = errors.New("not logged in")

// device is one client installation: its local store and everything that
// publishes from it. User actions go through the outbox so nothing is lost
// while the server is unreachable. Reconciliation pushes go straight to the
// client; they are snapshots and must not be replayed after an outage.
type device struct {
	cfg    *config.Config
	logger zerolog.Logger

	store    *localstore.Store
	client   *syncclient.Client
	outbox   *syncclient.Outbox
	events   *syncclient.Events
	pushes   *syncclient.Events
	records  patient.Repository
	accounts account.Repository
	qrcodes  *qrcode.Service

	accountSvc *account.Service
	portal     *portal.Service
}

func openDevice() (*device, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newDevice(cfg, logger)
}

func newDevice(cfg *config.Config, logger zerolog.Logger) (*device, error) {
	store, err := localstore.Open(cfg.LocalStorePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	d := &device{cfg: cfg, logger: logger, store: store}
	d.client = syncclient.New(cfg.ServerURL, logger, syncclient.WithTimeout(cfg.SyncTimeout))
	d.outbox = syncclient.NewOutbox(store, d.client, logger)
	d.events = syncclient.NewEvents(d.outbox)
	d.pushes = syncclient.NewEvents(d.client)
	d.records = patient.NewKVRepo(store)
	d.accounts = account.NewKVRepo(store)
	d.qrcodes = qrcode.NewService(store)
	d.accountSvc = account.NewService(d.accounts, d.records, d.qrcodes, d.events, logger)
	d.portal = portal.NewService(d.accounts, d.records, d.qrcodes, d.events, logger)
	return d, nil
}

func (d *device) reconciler() *reconcile.Reconciler {
	return reconcile.New(
		syncclient.NewHTTPPuller(d.client),
		d.records,
		d.pushes,
		d.logger,
		reconcile.WithPushConcurrency(d.cfg.PushConcurrency),
	)
}

// currentUser returns the signed-in user or errNotLoggedIn.
func (d *device) currentUser(ctx context.Context) (*account.User, error) {
	u, err := d.accountSvc.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errNotLoggedIn
	}
	return u, nil
}

// requireAdmin returns the signed-in user if it is the administrator.
func (d *device) requireAdmin(ctx context.Context) (*account.User, error) {
	u, err := d.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := portal.RequireAdmin(u); err != nil {
		return nil, err
	}
	return u, nil
}

// pendingNote tells the user whether queued events are waiting for the
// server.
func (d *device) pendingNote() string {
	pending, err := d.outbox.Pending()
	if err != nil || len(pending) == 0 {
		return ""
	}
	return fmt.Sprintf("saved locally, %d event(s) will sync when the server is reachable", len(pending))
}
