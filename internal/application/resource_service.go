package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
)

const (
	defaultAvailabilityTTL = 30 * time.Second
)

type ResourceService struct {
	resourceRepo resource.Repository
	cache        AvailabilityCache
	cacheTTL     time.Duration
}

func NewResourceService(rr resource.Repository, cache AvailabilityCache, ttl time.Duration) *ResourceService {
	if ttl <= 0 {
		ttl = defaultAvailabilityTTL
	}
	return &ResourceService{resourceRepo: rr, cache: cache, cacheTTL: ttl}
}

type CreateResourceInput struct {
	Name     string
	Kind     resource.Kind
	Capacity int
}

func (s *ResourceService) CreateResource(ctx context.Context, input CreateResourceInput) (*resource.Resource, error) {
	r := resource.NewResource(input.Name, input.Kind, input.Capacity)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.ID = uuid.NewString()
	if err := s.resourceRepo.Create(ctx, r); err != nil {
		return nil, err
	}
	logger.Info("リソースを登録しました", zap.String("resource_id", r.ID), zap.String("kind", string(r.Kind)))
	return r, nil
}

func (s *ResourceService) GetResource(ctx context.Context, id string) (*resource.Resource, error) {
	return s.resourceRepo.GetByID(ctx, id)
}

func (s *ResourceService) ListResources(ctx context.Context, limit, offset int) ([]*resource.Resource, error) {
	limit, offset = pageBounds(limit, offset)
	return s.resourceRepo.List(ctx, limit, offset)
}

// CountAvailable は新規に割り当て可能な数を返す
// 在庫リソースは残数、時間枠リソースは受付中なら1、停止中は0
func (s *ResourceService) CountAvailable(ctx context.Context, id string) (int, error) {
	// キャッシュから取得を試みる
	if s.cache != nil {
		count, found, err := s.cache.GetAvailable(ctx, id)
		if err != nil {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		} else if found {
			logger.Debug("キャッシュヒット", zap.String("resource_id", id), zap.Int("count", count))
			return count, nil
		}
	}

	// 台帳から取得
	r, err := s.resourceRepo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	count := availableOf(r)

	// キャッシュに保存
	if s.cache != nil {
		if cacheErr := s.cache.SetAvailable(ctx, id, count, s.cacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}
	return count, nil
}

func availableOf(r *resource.Resource) int {
	if !r.IsBookable() {
		return 0
	}
	if r.Kind == resource.KindInterval {
		return 1
	}
	return r.Available
}
