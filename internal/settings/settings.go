package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"liquidityDesk/internal/slippage"
)

// Preferences are the user's persisted slippage and deadline choices.
type Preferences struct {
	SlippageBps     int   `json:"slippage_bps"`
	DeadlineSeconds int64 `json:"deadline_seconds"`
}

// Defaults returns 0.5% slippage and a 20 minute deadline.
func Defaults() Preferences {
	return Preferences{
		SlippageBps:     slippage.DefaultBps,
		DeadlineSeconds: int64(slippage.DefaultDeadline / time.Second),
	}
}

// Policy converts preferences into a slippage policy.
func (p Preferences) Policy() slippage.Policy {
	return slippage.Policy{
		Bps:      p.SlippageBps,
		Deadline: time.Duration(p.DeadlineSeconds) * time.Second,
	}
}

// Validate rejects values the slippage rules refuse.
func (p Preferences) Validate() error {
	if p.SlippageBps < 0 || p.SlippageBps >= slippage.ParseLimitBps {
		return fmt.Errorf("%w: %d bps", slippage.ErrInvalidInput, p.SlippageBps)
	}
	if p.DeadlineSeconds <= 0 {
		return fmt.Errorf("%w: %d seconds", slippage.ErrInvalidDeadline, p.DeadlineSeconds)
	}
	return nil
}

// Store persists preferences.
type Store interface {
	Load(ctx context.Context) (Preferences, bool, error)
	Save(ctx context.Context, prefs Preferences) error
}

// LoadOrDefault returns stored preferences or the defaults when none are
// stored or the stored values are invalid.
func LoadOrDefault(ctx context.Context, store Store, logger *zap.Logger) (Preferences, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		return Defaults(), nil
	}
	prefs, ok, err := store.Load(ctx)
	if err != nil {
		return Defaults(), err
	}
	if !ok {
		return Defaults(), nil
	}
	if err := prefs.Validate(); err != nil {
		logger.Warn("stored settings invalid, using defaults", zap.Error(err))
		return Defaults(), nil
	}
	return prefs, nil
}

// FileStore stores preferences in a local JSON file.
type FileStore struct {
	Path string
}

type fileRecord struct {
	Preferences
	UpdatedAt string `json:"updated_at"`
}

func (s *FileStore) Load(ctx context.Context) (Preferences, bool, error) {
	if s == nil || s.Path == "" {
		return Preferences{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Preferences{}, false, nil
		}
		return Preferences{}, false, fmt.Errorf("read settings: %w", err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Preferences{}, false, fmt.Errorf("parse settings: %w", err)
	}
	return rec.Preferences, true, nil
}

func (s *FileStore) Save(ctx context.Context, prefs Preferences) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	rec := fileRecord{
		Preferences: prefs,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}

// Backend is the subset of the postgres store used for settings.
type Backend interface {
	LoadSettings(ctx context.Context, account string) (int, int64, bool, error)
	SaveSettings(ctx context.Context, account string, bps int, deadlineSeconds int64) error
}

// DBStore stores preferences in the user_settings table keyed by account.
type DBStore struct {
	Backend Backend
	Account string
}

func (s *DBStore) Load(ctx context.Context) (Preferences, bool, error) {
	if s == nil || s.Backend == nil {
		return Preferences{}, false, nil
	}
	bps, deadline, ok, err := s.Backend.LoadSettings(ctx, s.Account)
	if err != nil || !ok {
		return Preferences{}, ok, err
	}
	return Preferences{SlippageBps: bps, DeadlineSeconds: deadline}, true, nil
}

func (s *DBStore) Save(ctx context.Context, prefs Preferences) error {
	if s == nil || s.Backend == nil {
		return nil
	}
	return s.Backend.SaveSettings(ctx, s.Account, prefs.SlippageBps, prefs.DeadlineSeconds)
}
