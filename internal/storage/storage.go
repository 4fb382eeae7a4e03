package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/fengzhi/newshub/internal/news"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewsRecord 是入库的新闻条目，URL 作为幂等键
type NewsRecord struct {
	ID     string `gorm:"primaryKey;size:40" json:"id"`
	Source string `gorm:"size:64;index" json:"source"`
	Title  string `gorm:"size:512" json:"title"`
	URL    string `gorm:"size:1024;uniqueIndex" json:"url"`
	Origin string `gorm:"size:128" json:"origin"`
	// 摘要在适配器里已按 rune 截断到约 200 字，这里再做一层长度保护
	Summary     string            `gorm:"size:600" json:"summary"`
	PublishDate string            `gorm:"size:10;index" json:"publishDate"` // YYYY-MM-DD，未知为空
	ExtraData   datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&NewsRecord{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// toValidUTF8 规范字符串为合法 UTF-8，避免 GBK 混编来源触发
// PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

func truncateRunesDB(s string, limit int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// SaveBatch 保存一批抓取结果，URL 已存在时更新摘要与日期
func (s *Store) SaveBatch(source string, items []news.Item) error {
	for _, it := range items {
		pubDate := ""
		if it.PublishDate != nil {
			pubDate = it.PublishDate.Format("2006-01-02")
		}
		title := truncateRunesDB(toValidUTF8(it.Title), 512)
		summary := truncateRunesDB(toValidUTF8(it.Summary), 600)
		rec := &NewsRecord{
			ID:          hashURL(it.URL),
			Source:      source,
			Title:       title,
			URL:         it.URL,
			Origin:      it.Origin,
			Summary:     summary,
			PublishDate: pubDate,
		}
		if err := s.DB.Where("url = ?", it.URL).FirstOrCreate(rec).Error; err != nil {
			return err
		}
		_ = s.DB.Model(rec).Updates(map[string]any{
			"title":        title,
			"summary":      summary,
			"origin":       it.Origin,
			"publish_date": pubDate,
		}).Error
	}
	return nil
}

// ListNews 按来源返回最近入库的条目，日期倒序，空日期排在最后
func (s *Store) ListNews(source string, limit int) ([]NewsRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var list []NewsRecord
	db := s.DB.Model(&NewsRecord{})
	if source != "" {
		db = db.Where("source = ?", source)
	}
	err := db.Order("NULLIF(publish_date, '') DESC NULLS LAST").
		Order("updated_at DESC").Limit(limit).Find(&list).Error
	return list, err
}

const responseCacheTTL = 5 * time.Minute

// CachedResponse 读取某次抓取请求的缓存响应，未命中返回 false
func (s *Store) CachedResponse(ctx context.Context, key string) (*news.Response, bool) {
	if s.Redis == nil {
		return nil, false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var resp news.Response
	if err := json.Unmarshal(bs, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// CacheResponse 整体写入缓存（短 TTL，自然过期，不做通配删除）
func (s *Store) CacheResponse(ctx context.Context, key string, resp *news.Response) {
	if s.Redis == nil {
		return
	}
	bs, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = s.Redis.Set(ctx, key, bs, responseCacheTTL).Err()
}
