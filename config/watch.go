package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听配置文件变更并回调最新配置。
// 监听的是所在目录：多数编辑器通过 rename+create 替换文件，直接 watch 文件会丢事件。
type Watcher struct {
	Path     string
	Cooldown time.Duration // 两次重载之间的最小间隔，避免连续写入触发多次回调
}

// Start blocks until ctx is done, invoking onUpdate with each successfully
// reloaded config. Reload errors are reported through onError (may be nil).
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig), onError func(error)) error {
	if w.Path == "" {
		return fmt.Errorf("watcher path required")
	}
	if w.Cooldown <= 0 {
		w.Cooldown = 2 * time.Second
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.Path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(w.Path)
	var lastReload time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if time.Since(lastReload) < w.Cooldown {
				continue
			}
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				// 失败的读取不消耗冷却：truncate+write 保存会先送达一次
				// 半写状态的内容，真正的内容随下一个事件到来
				if onError != nil {
					onError(err)
				}
				continue
			}
			lastReload = time.Now()
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
