package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource(t *testing.T) {
	t.Run("在庫リソース", func(t *testing.T) {
		r := NewResource("ノートPC", KindCounter, 5)

		assert.Equal(t, "ノートPC", r.Name)
		assert.Equal(t, KindCounter, r.Kind)
		assert.Equal(t, 5, r.Capacity)
		assert.Equal(t, 5, r.Available)
		assert.Equal(t, StatusAvailable, r.Status)
		assert.Equal(t, 0, r.Version)
	})

	t.Run("時間枠リソースは容量1で作成される", func(t *testing.T) {
		r := NewResource("会議室A", KindInterval, 0)

		assert.Equal(t, 1, r.Capacity)
		require.NoError(t, r.Validate())
	})
}

func TestResource_Validate(t *testing.T) {
	tests := []struct {
		name        string
		resource    *Resource
		expectedErr error
	}{
		{"有効な在庫リソース", &Resource{Name: "教科書", Kind: KindCounter, Capacity: 10}, nil},
		{"有効な時間枠リソース", &Resource{Name: "会議室A", Kind: KindInterval, Capacity: 1}, nil},
		{"名前が空", &Resource{Name: "", Kind: KindCounter, Capacity: 10}, ErrNameRequired},
		{"種別が不正", &Resource{Name: "x", Kind: "unknown", Capacity: 1}, ErrInvalidKind},
		{"在庫が0", &Resource{Name: "教科書", Kind: KindCounter, Capacity: 0}, ErrInvalidCapacity},
		{"時間枠で容量2", &Resource{Name: "会議室A", Kind: KindInterval, Capacity: 2}, ErrIntervalCapacityFixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resource.Validate()
			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestResource_OccupyAndRelease(t *testing.T) {
	t.Run("在庫を確保して戻せる", func(t *testing.T) {
		r := NewResource("ノートPC", KindCounter, 5)

		require.NoError(t, r.Occupy(3))
		assert.Equal(t, 2, r.Available)

		r.Release(3)
		assert.Equal(t, 5, r.Available)
	})

	t.Run("残量を超える確保はできない", func(t *testing.T) {
		r := NewResource("ノートPC", KindCounter, 2)

		err := r.Occupy(3)

		assert.ErrorIs(t, err, ErrInsufficientCapacity)
		assert.Equal(t, 2, r.Available)
	})

	t.Run("解放しても容量を超えない", func(t *testing.T) {
		r := NewResource("ノートPC", KindCounter, 2)

		r.Release(5)

		assert.Equal(t, 2, r.Available)
	})

	t.Run("時間枠リソースは残量を変えない", func(t *testing.T) {
		r := NewResource("会議室A", KindInterval, 1)

		require.NoError(t, r.Occupy(0))
		assert.Equal(t, 1, r.Available)
	})
}

func TestResource_ChangeStatus(t *testing.T) {
	r := NewResource("会議室A", KindInterval, 1)

	changed, err := r.ChangeStatus(StatusUnavailable)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, r.IsBookable())

	changed, err = r.ChangeStatus(StatusUnavailable)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = r.ChangeStatus("broken")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"AVAILABLE", StatusAvailable, false},
		{"degraded", StatusDegraded, false},
		{" Unavailable ", StatusUnavailable, false},
		{"MAINTENANCE", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
