package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchAdmins re-reads admin.ids whenever the config file changes and hands the new list to apply.
// Other sections are not reloaded.
func WatchAdmins(v *viper.Viper, log *slog.Logger, apply func(ids []int64)) {
	if v == nil || apply == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		var admin AdminConfig
		if err := v.UnmarshalKey("admin", &admin); err != nil {
			log.Error("config reload: failed to decode admin section", slog.String("file", e.Name), slog.Any("error", err))
			return
		}

		apply(admin.IDs)
		log.Info("config reload: admin list updated", slog.String("file", e.Name), slog.Int("admins", len(admin.IDs)))
	})
	v.WatchConfig()
}
