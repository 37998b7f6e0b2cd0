package dbview

import (
	"encoding/json"
)

// ViewMode selects the renderer.
type ViewMode string

const (
	ViewTable   ViewMode = "table"
	ViewBoard   ViewMode = "board"
	ViewGallery ViewMode = "gallery"
	ViewList    ViewMode = "list"
)

// ViewModes lists the modes in switcher order.
func ViewModes() []ViewMode {
	return []ViewMode{ViewTable, ViewBoard, ViewGallery, ViewList}
}

func (m ViewMode) Valid() bool {
	switch m {
	case ViewTable, ViewBoard, ViewGallery, ViewList:
		return true
	}
	return false
}

// ViewConfig is the persisted subset of the view state.
type ViewConfig struct {
	View       ViewMode `json:"view,omitempty"`
	HiddenCols []string `json:"hiddenCols"`
	ColOrder   []string `json:"colOrder"`
	SortField  string   `json:"sortField"`
	SortDir    SortDir  `json:"sortDir"`
}

// LoadViewConfig reads and validates the configuration saved for stateKey.
// Absent, malformed or invalid entries report false. Unknown view modes are
// dropped, colOrder is pruned to knownIDs and discarded entirely if nothing
// survives.
func LoadViewConfig(storage Storage, stateKey string, knownIDs []string) (ViewConfig, bool) {
	if storage == nil || stateKey == "" {
		return ViewConfig{}, false
	}
	raw, ok := storage.Get(StorageKey(stateKey))
	if !ok || raw == "" {
		return ViewConfig{}, false
	}
	var cfg ViewConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return ViewConfig{}, false
	}

	if !cfg.View.Valid() {
		cfg.View = ""
	}
	if cfg.SortDir != SortAsc && cfg.SortDir != SortDesc {
		cfg.SortDir = SortAsc
	}

	if cfg.ColOrder != nil {
		known := make(map[string]bool, len(knownIDs))
		for _, id := range knownIDs {
			known[id] = true
		}
		pruned := make([]string, 0, len(cfg.ColOrder))
		seen := make(map[string]bool, len(cfg.ColOrder))
		for _, id := range cfg.ColOrder {
			if known[id] && !seen[id] {
				seen[id] = true
				pruned = append(pruned, id)
			}
		}
		if len(pruned) == 0 {
			pruned = nil
		}
		cfg.ColOrder = pruned
	}
	if cfg.HiddenCols == nil {
		cfg.HiddenCols = []string{}
	}
	return cfg, true
}

// SaveViewConfig serializes cfg under the namespaced key.
func SaveViewConfig(storage Storage, stateKey string, cfg ViewConfig) error {
	if cfg.HiddenCols == nil {
		cfg.HiddenCols = []string{}
	}
	if cfg.ColOrder == nil {
		cfg.ColOrder = []string{}
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return storage.Set(StorageKey(stateKey), string(data))
}
