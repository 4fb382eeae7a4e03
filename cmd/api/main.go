package main

import (
	"log"

	"github.com/fengzhi/newshub/internal/api"
	"github.com/fengzhi/newshub/internal/config"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/registry"
	"github.com/fengzhi/newshub/internal/render"
	"github.com/fengzhi/newshub/internal/scheduler"
	"github.com/fengzhi/newshub/internal/sources"
	"github.com/fengzhi/newshub/internal/storage"
	"github.com/gin-gonic/gin"
)

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
	s.Start()

	r := gin.Default()
	apiServer := api.NewServer(reg, store)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
