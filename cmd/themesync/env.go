package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/manifest"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/store"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/syncer"
)

// env bundles the opened store, manifest, and syncer for one-shot commands.
// The watch command uses the daemon package instead, which owns the same
// resources for its full lifetime.
type env struct {
	Root     string
	Store    *store.Store
	Manifest manifest.Manifest
	Syncer   syncer.Syncer
}

// openEnv opens the store and manifest under <root>/.themesync, creating
// and migrating them as needed.
func openEnv() (*env, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	logger := newLogger("[themesync] ")

	storePath := viper.GetString("store")
	if storePath == "" {
		storePath = filepath.Join(root, ".themesync", "store.db")
	}
	manifestPath := viper.GetString("manifest")
	if manifestPath == "" {
		manifestPath = filepath.Join(root, ".themesync", "manifest.db")
	}

	st, err := store.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	mf, err := manifest.Open(manifestPath, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	return &env{
		Root:     root,
		Store:    st,
		Manifest: mf,
		Syncer:   syncer.New(st, mf, root, logger),
	}, nil
}

// Close releases the store and manifest handles.
func (e *env) Close() {
	_ = e.Manifest.Close()
	_ = e.Store.Close()
}
