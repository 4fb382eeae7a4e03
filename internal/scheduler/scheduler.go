package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/registry"
	"github.com/fengzhi/newshub/internal/storage"
	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron   *cron.Cron
	reg    *registry.Registry
	store  *storage.Store
	policy crawl.Policy
}

func New(spec string, reg *registry.Registry, store *storage.Store) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:   c,
		reg:    reg,
		store:  store,
		policy: crawl.DefaultPolicy,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟首轮采集，避免和服务刚启动时的请求争抢连接
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	log.Println("start collect job...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var wg sync.WaitGroup
	for _, id := range s.reg.IDs() {
		runner := s.reg.Get(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := runner.ID()
			log.Printf("collect from %s...", name)
			outcome := runner.Run(ctx, s.policy)
			if outcome.Status == crawl.StatusError {
				log.Printf("collect %s error: %s %s", name, outcome.Code, outcome.Message)
				return
			}
			if len(outcome.Items) == 0 {
				log.Printf("collect %s got 0 items", name)
				return
			}
			if s.store != nil {
				if err := s.store.SaveBatch(name, outcome.Items); err != nil {
					log.Printf("save %s batch error: %v", name, err)
					return
				}
			}
			// 条数 = 本轮解析到的数量（非“新增数”，已存在会更新）
			log.Printf("%s done, saved=%d items", name, len(outcome.Items))
		}()
	}

	wg.Wait()
	log.Println("collect job done (all sources)")
}
