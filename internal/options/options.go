// ABOUTME: Typed user settings with defaults, validation and per-key persistence
// ABOUTME: HideRecursively gates recursive propagation in the hide package

package options

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/2389/threadsync/internal/store"
)

// Allowed values for menu settings.
var (
	ThumbStyles     = []string{"small", "sharp", "hide"}
	ThumbExpansions = []string{"none", "full", "height", "width", "both"}
	Themes          = []string{
		"moe", "gar", "mawaru", "moon", "ashita", "console", "tea", "higan",
		"ocean", "rave", "tavern", "glass", "material",
	}
)

// Bounds for LastN.
const (
	MinLastN = 5
	MaxLastN = 500
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid option")

// Options enumerates every recognized client setting.
type Options struct {
	Lang              string `json:"lang"`
	InlineFit         string `json:"inlineFit"`
	Thumbs            string `json:"thumbs"`
	ImageHover        bool   `json:"imageHover"`
	WebmHover         bool   `json:"webmHover"`
	AutoGIF           bool   `json:"autogif"`
	Spoilers          bool   `json:"spoilers"`
	Notification      bool   `json:"notification"`
	Anonymise         bool   `json:"anonymise"`
	RelativeTime      bool   `json:"relativeTime"`
	HorizontalPosting bool   `json:"horizontalPosting"`
	ReplyRight        bool   `json:"replyRight"`
	Theme             string `json:"theme"`
	LastN             int    `json:"lastN"`
	PostUnloading     bool   `json:"postUnloading"`
	AlwaysLock        bool   `json:"alwaysLock"`
	HideRecursively   bool   `json:"hideRecursively"`
}

// Defaults returns the settings used when nothing is stored.
func Defaults() Options {
	return Options{
		Lang:          "en_GB",
		InlineFit:     "width",
		Thumbs:        "sharp",
		ImageHover:    true,
		Spoilers:      true,
		Theme:         "moe",
		LastN:         100,
		PostUnloading: true,
	}
}

// Validate reports every field holding a value outside its allowed set.
func (o *Options) Validate() error {
	var errs []error
	if o.Lang == "" {
		errs = append(errs, fmt.Errorf("%w: lang is empty", ErrInvalid))
	}
	if !slices.Contains(ThumbExpansions, o.InlineFit) {
		errs = append(errs, fmt.Errorf("%w: inlineFit %q", ErrInvalid, o.InlineFit))
	}
	if !slices.Contains(ThumbStyles, o.Thumbs) {
		errs = append(errs, fmt.Errorf("%w: thumbs %q", ErrInvalid, o.Thumbs))
	}
	if !slices.Contains(Themes, o.Theme) {
		errs = append(errs, fmt.Errorf("%w: theme %q", ErrInvalid, o.Theme))
	}
	if o.LastN < MinLastN || o.LastN > MaxLastN {
		errs = append(errs, fmt.Errorf("%w: lastN %d not in [%d, %d]", ErrInvalid, o.LastN, MinLastN, MaxLastN))
	}
	return errors.Join(errs...)
}

// fields returns the settings as raw JSON keyed by setting id.
func (o *Options) fields() (map[string]json.RawMessage, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Keys lists every setting id in ascending order.
func Keys() []string {
	d := Defaults()
	fields, _ := d.fields()
	return slices.Sorted(maps.Keys(fields))
}

// Load reads settings from s over the defaults. A stored value that does
// not decode or validate is logged and replaced by its default. Store
// failures are returned; the caller decides whether they block startup.
func Load(ctx context.Context, s store.Store, logger *slog.Logger) (Options, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "options")

	opts := Defaults()
	stored, err := store.ListOptions(ctx, s)
	if err != nil {
		return opts, fmt.Errorf("loading options: %w", err)
	}

	for _, key := range Keys() {
		raw, ok := stored[key]
		if !ok {
			continue
		}
		candidate := opts
		single, _ := json.Marshal(map[string]json.RawMessage{key: raw})
		if err := json.Unmarshal(single, &candidate); err != nil {
			logger.Warn("ignoring undecodable option", "key", key, "error", err)
			continue
		}
		if err := candidate.Validate(); err != nil {
			logger.Warn("ignoring invalid option", "key", key, "error", err)
			continue
		}
		opts = candidate
	}
	return opts, nil
}

// Save validates o and writes every setting to s.
func Save(ctx context.Context, s store.Store, o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	fields, err := o.fields()
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		if err := store.PutOption(ctx, s, key, fields[key]); err != nil {
			return fmt.Errorf("saving option %s: %w", key, err)
		}
	}
	return nil
}

// Set decodes value into the setting named key and validates the result.
func (o *Options) Set(key, value string) error {
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("%w: unknown setting %q", ErrInvalid, key)
	}
	candidate := *o
	raw := json.RawMessage(value)
	if !json.Valid(raw) {
		// Bare words are accepted for string settings
		quoted, _ := json.Marshal(value)
		raw = quoted
	}
	single, _ := json.Marshal(map[string]json.RawMessage{key: raw})
	if err := json.Unmarshal(single, &candidate); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	if err := candidate.Validate(); err != nil {
		return err
	}
	*o = candidate
	return nil
}
