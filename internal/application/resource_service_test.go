package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
)

func TestResourceService_CreateResource(t *testing.T) {
	ctx := context.Background()

	t.Run("在庫リソースを登録する", func(t *testing.T) {
		repo := new(MockResourceRepository)
		svc := NewResourceService(repo, nil, 0)
		repo.On("Create", ctx, mock.MatchedBy(func(r *resource.Resource) bool {
			return r.ID != "" && r.Available == 10 && r.Version == 0
		})).Return(nil)

		r, err := svc.CreateResource(ctx, CreateResourceInput{Name: "ノート", Kind: resource.KindCounter, Capacity: 10})

		require.NoError(t, err)
		assert.Equal(t, resource.StatusAvailable, r.Status)
		repo.AssertExpectations(t)
	})

	t.Run("時間枠リソースは容量を省略できる", func(t *testing.T) {
		repo := new(MockResourceRepository)
		svc := NewResourceService(repo, nil, 0)
		repo.On("Create", ctx, mock.Anything).Return(nil)

		r, err := svc.CreateResource(ctx, CreateResourceInput{Name: "会議室A", Kind: resource.KindInterval})

		require.NoError(t, err)
		assert.Equal(t, 1, r.Capacity)
	})

	t.Run("不正な入力は登録しない", func(t *testing.T) {
		repo := new(MockResourceRepository)
		svc := NewResourceService(repo, nil, 0)

		_, err := svc.CreateResource(ctx, CreateResourceInput{Name: "ノート", Kind: resource.KindCounter, Capacity: 0})

		assert.ErrorIs(t, err, resource.ErrValidation)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestResourceService_CountAvailable(t *testing.T) {
	ctx := context.Background()
	ttl := 30 * time.Second

	t.Run("キャッシュヒット", func(t *testing.T) {
		repo := new(MockResourceRepository)
		cache := new(MockAvailabilityCache)
		svc := NewResourceService(repo, cache, ttl)
		cache.On("GetAvailable", ctx, "product-1").Return(4, true, nil)

		count, err := svc.CountAvailable(ctx, "product-1")

		require.NoError(t, err)
		assert.Equal(t, 4, count)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("キャッシュミスなら台帳から読んで保存する", func(t *testing.T) {
		repo := new(MockResourceRepository)
		cache := new(MockAvailabilityCache)
		svc := NewResourceService(repo, cache, ttl)
		cache.On("GetAvailable", ctx, "product-1").Return(0, false, nil)
		repo.On("GetByID", ctx, "product-1").Return(counterResource(2), nil)
		cache.On("SetAvailable", ctx, "product-1", 2, ttl).Return(nil)

		count, err := svc.CountAvailable(ctx, "product-1")

		require.NoError(t, err)
		assert.Equal(t, 2, count)
		cache.AssertExpectations(t)
	})

	t.Run("キャッシュ障害時も台帳から返す", func(t *testing.T) {
		repo := new(MockResourceRepository)
		cache := new(MockAvailabilityCache)
		svc := NewResourceService(repo, cache, ttl)
		cache.On("GetAvailable", ctx, "room-1").Return(0, false, errors.New("redis down"))
		repo.On("GetByID", ctx, "room-1").Return(roomResource(), nil)
		cache.On("SetAvailable", ctx, "room-1", 1, ttl).Return(errors.New("redis down"))

		count, err := svc.CountAvailable(ctx, "room-1")

		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("停止中のリソースは0", func(t *testing.T) {
		repo := new(MockResourceRepository)
		svc := NewResourceService(repo, nil, ttl)
		degraded := counterResource(5)
		degraded.Status = resource.StatusDegraded
		repo.On("GetByID", ctx, "product-1").Return(degraded, nil)

		count, err := svc.CountAvailable(ctx, "product-1")

		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("リソースが存在しない", func(t *testing.T) {
		repo := new(MockResourceRepository)
		svc := NewResourceService(repo, nil, ttl)
		repo.On("GetByID", ctx, "missing").Return(nil, resource.ErrResourceNotFound)

		_, err := svc.CountAvailable(ctx, "missing")

		assert.ErrorIs(t, err, resource.ErrResourceNotFound)
	})
}

func TestResourceService_ListResources(t *testing.T) {
	ctx := context.Background()
	repo := new(MockResourceRepository)
	svc := NewResourceService(repo, nil, 0)
	repo.On("List", ctx, 20, 0).Return([]*resource.Resource{roomResource()}, nil)

	list, err := svc.ListResources(ctx, 0, 0)

	require.NoError(t, err)
	assert.Len(t, list, 1)
	repo.AssertExpectations(t)

	t.Run("範囲外の指定は丸める", func(t *testing.T) {
		repo := new(MockResourceRepository)
		svc := NewResourceService(repo, nil, 0)
		repo.On("List", ctx, 100, 0).Return([]*resource.Resource{}, nil)

		_, err := svc.ListResources(ctx, 1000, -10)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}
