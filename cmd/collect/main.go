package main

import (
	"log"

	"github.com/fengzhi/newshub/internal/config"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/registry"
	"github.com/fengzhi/newshub/internal/render"
	"github.com/fengzhi/newshub/internal/scheduler"
	"github.com/fengzhi/newshub/internal/sources"
	"github.com/fengzhi/newshub/internal/storage"
)

// 一次性采集入口：跑完所有来源并入库后退出，适合 crontab / 手工触发
func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	client := fetch.NewClient(fetch.DefaultRetry)
	client.AlwaysNoProxy = cfg.ProxyBypass

	var renderer sources.Renderer
	if cfg.RenderURL != "" {
		renderer = render.NewClient(cfg.RenderURL)
	}
	reg := registry.New(client, renderer)

	s, err := scheduler.New(cfg.CronSpec, reg, store)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.RunOnce()
}
