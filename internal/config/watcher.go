package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// EmailCredentials is the pair of values the watcher re-reads from the
// environment file when it changes on disk.
type EmailCredentials struct {
	Account  string
	Password string
}

// CredentialWatcher monitors the .env file so rotated email credentials take
// effect without restarting the agent. Everything else in the configuration
// stays immutable after startup.
type CredentialWatcher struct {
	envPath  string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	onReload func(EmailCredentials)
}

// NewCredentialWatcher creates a watcher for the given .env path.
func NewCredentialWatcher(envPath string) (*CredentialWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &CredentialWatcher{
		envPath:  envPath,
		watcher:  watcher,
		stopChan: make(chan struct{}),
	}, nil
}

// SetReloadCallback sets the function invoked with fresh credentials after a
// successful re-read of the environment file.
func (cw *CredentialWatcher) SetReloadCallback(callback func(EmailCredentials)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.onReload = callback
}

// Start begins watching the directory containing the env file.
func (cw *CredentialWatcher) Start() error {
	dir := filepath.Dir(cw.envPath)
	if err := cw.watcher.Add(dir); err != nil {
		return err
	}

	go cw.watchForChanges()
	log.Info().Str("envPath", cw.envPath).Msg("Watching environment file for credential changes")
	return nil
}

// Stop stops the watcher.
func (cw *CredentialWatcher) Stop() {
	cw.stopOnce.Do(func() {
		close(cw.stopChan)
		cw.watcher.Close()
	})
}

func (cw *CredentialWatcher) watchForChanges() {
	// Editors often produce several events per save; coalesce them.
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(cw.envPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, cw.reload)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Environment file watcher error")

		case <-cw.stopChan:
			return
		}
	}
}

func (cw *CredentialWatcher) reload() {
	envMap, err := godotenv.Read(cw.envPath)
	if err != nil {
		log.Warn().Err(err).Str("envPath", cw.envPath).Msg("Failed to re-read environment file")
		return
	}

	creds := EmailCredentials{
		Account:  envMap[EnvEmailAccount],
		Password: envMap[EnvEmailPassword],
	}
	if creds.Account == "" || creds.Password == "" {
		log.Warn().Str("envPath", cw.envPath).Msg("Environment file is missing email credentials, keeping previous values")
		return
	}

	cw.mu.Lock()
	callback := cw.onReload
	cw.mu.Unlock()

	if callback != nil {
		callback(creds)
		log.Info().Msg("Email credentials reloaded from environment file")
	}
}
