package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/watcher"
)

// WatcherSettings is the API view of the watcher configuration.
type WatcherSettings struct {
	Enabled      bool            `json:"enabled"`
	IgnoreModify bool            `json:"ignore_modify"`
	State        string          `json:"state"`
	Pending      []watcher.Event `json:"pending"`
}

// UpdateWatcherRequest toggles watcher settings. Omitted fields keep their
// current value.
type UpdateWatcherRequest struct {
	Enabled      *bool `json:"enabled"`
	IgnoreModify *bool `json:"ignore_modify"`
}

// SettingsController exposes runtime watcher settings.
type SettingsController struct {
	watcher             WatcherControl
	settings            SettingsStore
	ignoreModifyDefault bool
}

func NewSettingsController(w WatcherControl, settings SettingsStore, ignoreModifyDefault bool) *SettingsController {
	return &SettingsController{watcher: w, settings: settings, ignoreModifyDefault: ignoreModifyDefault}
}

// GetWatcher handles GET /api/settings/watcher
func (sc *SettingsController) GetWatcher(c *gin.Context) {
	c.JSON(http.StatusOK, sc.current())
}

// UpdateWatcher handles PUT /api/settings/watcher
// Persists the new values and restarts the watcher so they take effect.
func (sc *SettingsController) UpdateWatcher(c *gin.Context) {
	var req UpdateWatcherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Enabled == nil && req.IgnoreModify == nil {
		respondBadRequest(c, "nothing to update")
		return
	}

	if req.IgnoreModify != nil {
		if err := sc.settings.SetBool(entities.SettingKeyWatcherIgnoreModify, *req.IgnoreModify); err != nil {
			respondInternalError(c, err, "save watcher ignore_modify")
			return
		}
	}
	if req.Enabled != nil {
		if err := sc.settings.SetBool(entities.SettingKeyWatcherEnabled, *req.Enabled); err != nil {
			respondInternalError(c, err, "save watcher enabled")
			return
		}
		sc.watcher.SetEnabled(*req.Enabled)
	}
	sc.watcher.Restart()

	settings := sc.current()
	logging.L().Info("Watcher settings updated",
		logging.Bool("enabled", settings.Enabled),
		logging.Bool("ignore_modify", settings.IgnoreModify),
	)
	c.JSON(http.StatusOK, settings)
}

func (sc *SettingsController) current() WatcherSettings {
	pending := sc.watcher.Pending()
	if pending == nil {
		pending = []watcher.Event{}
	}
	return WatcherSettings{
		Enabled:      sc.watcher.Enabled(),
		IgnoreModify: sc.settings.GetBool(entities.SettingKeyWatcherIgnoreModify, sc.ignoreModifyDefault),
		State:        sc.watcher.State().String(),
		Pending:      pending,
	}
}
