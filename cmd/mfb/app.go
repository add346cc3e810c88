package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/config"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/queue"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/remote"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/router"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/store"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/syncer"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ui"
)

// app bundles the opened data layer for one CLI invocation.
type app struct {
	dir    string
	logger *log.Logger
	db     *store.DB
	cfg    *config.Store
	queue  *queue.Queue
}

func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".mfb"), nil
}

func openApp() (*app, error) {
	dir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logger := log.New(&lumberjack.Logger{
		Filename:   filepath.Join(dir, "mfb.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	}, "", log.LstdFlags)

	db, err := store.Open(filepath.Join(dir, "budget.db"))
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	cfg, err := config.Open(filepath.Join(dir, "config.json"), logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	q := queue.New(db.RawDB(), logger)
	if err := q.Init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{dir: dir, logger: logger, db: db, cfg: cfg, queue: q}, nil
}

// mustApp opens the data layer or exits.
func mustApp() *app {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}

func (a *app) Close() {
	_ = a.db.Close()
}

// backend builds the remote client from the environment.
func (a *app) backend() remote.Backend {
	cfg := remote.DefaultConfig()
	if v := os.Getenv("MFB_API_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("MFB_API_TOKEN"); v != "" {
		cfg.Token = v
	}
	return remote.NewClient(cfg, a.logger)
}

func (a *app) engine() *syncer.Engine {
	return syncer.New(a.db, a.queue, a.backend(), a.logger)
}

// currentFamily resolves the family selected via 'mfb family use'.
func (a *app) currentFamily(ctx context.Context) (*types.Family, error) {
	id, ok := a.cfg.Get(config.KeyCurrentFamily)
	if !ok || id == "" {
		return nil, fmt.Errorf("no family selected; run 'mfb family use <id>'")
	}
	f, err := a.db.GetFamily(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load family %s: %w", id, err)
	}
	return f, nil
}

// writeThrough forwards a local mutation to wherever the family lives.
// Offline families get the mutation queued for the eventual migration.
// Online families get it delivered immediately; if the backend is
// unreachable the mutation is queued instead and a later 'mfb queue drain'
// catches up.
func (a *app) writeThrough(ctx context.Context, f *types.Family, kind types.Kind, action types.Action, entityID string, payload map[string]any) error {
	if router.Route(f) == router.Local {
		return a.enqueue(ctx, f.ID, kind, action, entityID, payload)
	}

	var err error
	switch action {
	case types.ActionInsert:
		var remoteID string
		remoteID, err = a.backend().Insert(ctx, f.ID, kind, entityID, payload)
		if err == nil && remoteID != "" && remoteID != entityID {
			// The backend assigned its own id; the cached row must carry it
			// or every later update and delete targets an id the backend
			// has never seen.
			if rwErr := a.db.RewriteEntityID(ctx, f.ID, kind, entityID, remoteID); rwErr != nil {
				a.logger.Printf("[cli] failed to adopt remote id %s for %s %s: %v",
					remoteID, kind, entityID, rwErr)
			}
		}
	case types.ActionUpdate:
		err = a.backend().Update(ctx, f.ID, kind, entityID, payload)
	case types.ActionDelete:
		err = a.backend().Delete(ctx, f.ID, kind, entityID)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		a.logger.Printf("[cli] remote %s %s failed, queuing: %v", action, kind, err)
		fmt.Println(ui.Warn("backend unreachable, mutation queued for later delivery"))
		return a.enqueue(ctx, f.ID, kind, action, entityID, payload)
	}
	return nil
}

func (a *app) enqueue(ctx context.Context, familyID string, kind types.Kind, action types.Action, entityID string, payload map[string]any) error {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode mutation payload: %w", err)
		}
		data = encoded
	}
	return a.queue.Enqueue(ctx, &queue.Item{
		FamilyID: familyID,
		Kind:     kind,
		Action:   action,
		EntityID: entityID,
		Data:     data,
	})
}

// toMap converts a parsed input struct into its sanitized wire payload.
func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// offlineBadge renders the routing destination for listings.
func offlineBadge(f *types.Family) string {
	if f.IsOffline || ident.IsOffline(f.ID) {
		return ui.Warn("offline")
	}
	return ui.Pass("online")
}
