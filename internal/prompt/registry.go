package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"augur/internal/logger"
)

const (
	defaultSystem = `You are an autonomous player in a short crypto price-prediction round.
Pick {{expected}} coins (never more than {{max}}) from the forecasts below and predict for each
whether its price will be higher (1) or lower (-1) when the round ends.
Forecasts are listed from most to least confident. Learn from your recent results when given.
Reply only with JSON that matches the provided schema.`
	defaultBriefHeader   = "Forecasts (symbol, prediction, confidence):"
	defaultHistoryHeader = "Your recent results:"
)

// Templates holds the prompt text used to brief the reasoning service.
// {{expected}} and {{max}} in System are replaced by the selection bounds.
type Templates struct {
	System        string `yaml:"system"`
	BriefHeader   string `yaml:"brief_header"`
	HistoryHeader string `yaml:"history_header"`
}

// SystemPrompt renders System with the selection bounds.
func (t Templates) SystemPrompt(expected, max int) string {
	return strings.NewReplacer(
		"{{expected}}", strconv.Itoa(expected),
		"{{max}}", strconv.Itoa(max),
	).Replace(t.System)
}

func Defaults() Templates {
	return Templates{
		System:        defaultSystem,
		BriefHeader:   defaultBriefHeader,
		HistoryHeader: defaultHistoryHeader,
	}
}

type fileConfig struct {
	Prompts Templates `yaml:"prompts"`
}

// Snapshot is the registry content at one reload.
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Templates Templates
}

type ChangeListener func(Snapshot)

// Registry serves prompt templates, reloading them when the file changes.
// Without a path it serves the built-in defaults.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path)}
	if r.path == "" {
		r.snapshot = Snapshot{Version: 1, LoadedAt: time.Now(), Templates: Defaults()}
		logger.Infof("[prompt] no prompt file configured, using built-in templates")
		return r, nil
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read prompt file failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("[prompt] reload failed, keeping version %d: %v", r.Current().Version, err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	r.v = v
	return r, nil
}

// Current returns the active snapshot.
func (r *Registry) Current() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

func (r *Registry) Templates() Templates {
	return r.Current().Templates
}

func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	tpl, err := readPromptFile(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Templates: tpl,
	}
	r.mu.Unlock()
	logger.Infof("[prompt] loaded templates from %s", filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("[prompt] listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

// readPromptFile decodes strictly; blank fields fall back to the defaults.
func readPromptFile(path string) (Templates, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("read prompt file failed: %w", err)
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Templates{}, fmt.Errorf("parse prompt file failed: %w", err)
	}
	def := Defaults()
	tpl := cfg.Prompts
	if strings.TrimSpace(tpl.System) == "" {
		tpl.System = def.System
	}
	if strings.TrimSpace(tpl.BriefHeader) == "" {
		tpl.BriefHeader = def.BriefHeader
	}
	if strings.TrimSpace(tpl.HistoryHeader) == "" {
		tpl.HistoryHeader = def.HistoryHeader
	}
	return tpl, nil
}
