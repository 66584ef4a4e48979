package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"shelter-media/internal/database"
	"shelter-media/internal/dbfs"
	"shelter-media/internal/document"
	"shelter-media/internal/imageops"
	"shelter-media/internal/logging"
	"shelter-media/internal/media"
	"shelter-media/internal/mediatypes"
	"shelter-media/internal/memory"
	"shelter-media/internal/startup"
)

// errLocked is returned when another mediatool run holds the lock.
var errLocked = errors.New("another mediatool run is in progress")

// toolEnv is the opened storage and service for one command run.
type toolEnv struct {
	config *startup.Config
	db     *database.Database
	blobs  *dbfs.Store
	svc    *media.Service
	mem    *memory.Monitor
	lock   *flock.Flock
	vips   bool
}

// openEnv loads configuration from the environment, takes the run lock and
// opens the database and blob store.
func openEnv(ctx context.Context, useLock bool) (*toolEnv, error) {
	config, err := startup.LoadQuietConfig()
	if err != nil {
		return nil, err
	}

	env := &toolEnv{config: config}
	if useLock {
		env.lock = flock.New(config.LockPath)
		ok, err := env.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", config.LockPath, err)
		}
		if !ok {
			return nil, errLocked
		}
	}

	env.db, err = database.New(ctx, config.DatabasePath)
	if err != nil {
		env.close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	env.blobs, err = dbfs.Open(ctx, config.BlobDir)
	if err != nil {
		env.close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	if config.UseVips {
		if err := imageops.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using the pure Go scaler: %v", err)
		} else {
			env.vips = true
		}
	}

	env.mem = memory.NewMonitor(memory.DefaultConfig())
	env.mem.Start()

	env.svc = media.NewService(media.Config{
		DB:       env.db,
		Blobs:    env.blobs,
		Types:    mediatypes.NewTable(config.MimeTypes),
		Policy:   config.Policy,
		PDF:      document.NewCompactor(config.PDFCommand, config.ToolTimeout),
		Renderer: document.NewRenderer(config.HTMLCommand, config.ToolTimeout),
		Memory:   env.mem,
	})
	return env, nil
}

func (e *toolEnv) close() {
	if e.mem != nil {
		e.mem.Stop()
	}
	if e.vips {
		imageops.ShutdownVips()
	}
	if e.blobs != nil {
		if err := e.blobs.Close(); err != nil {
			logging.Warn("close blob store: %v", err)
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			logging.Warn("close database: %v", err)
		}
	}
	if e.lock != nil {
		if err := e.lock.Unlock(); err != nil {
			logging.Warn("release lock: %v", err)
		}
	}
}
