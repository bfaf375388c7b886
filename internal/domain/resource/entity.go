package resource

import (
	"strings"
	"time"
)

// Kind はリソースの容量モデルを表す
type Kind string

const (
	// KindInterval は重複しない時間枠を割り当てるリソース（会議室など）
	KindInterval Kind = "interval"
	// KindCounter は在庫数を割り当てるリソース（マーケットプレイスの商品など）
	KindCounter Kind = "counter"
)

// Status はリソースの状態を表す
type Status string

const (
	StatusAvailable   Status = "available"
	StatusDegraded    Status = "degraded"
	StatusUnavailable Status = "unavailable"
)

// ParseStatus は外部から受け取った状態文字列を Status に変換する
// "UNAVAILABLE" のような大文字表記も受け付ける
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusAvailable, StatusDegraded, StatusUnavailable:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Bookable は新規の割当を受け付ける状態かを返す
func (s Status) Bookable() bool {
	return s == StatusAvailable
}

// Resource は予約可能なリソース（台帳のエントリ）を表す
type Resource struct {
	ID        string
	Name      string
	Kind      Kind
	Capacity  int
	Available int // KindCounter のみ意味を持つ
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int // 楽観的ロック用
}

// NewResource は新しいリソースを作成する
func NewResource(name string, kind Kind, capacity int) *Resource {
	now := time.Now()
	if kind == KindInterval && capacity == 0 {
		capacity = 1
	}
	return &Resource{
		Name:      name,
		Kind:      kind,
		Capacity:  capacity,
		Available: capacity,
		Status:    StatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   0,
	}
}

// IsBookable はリソースが予約可能かを返す
func (r *Resource) IsBookable() bool {
	return r.Status.Bookable()
}

// Occupy は割当分の容量を確保する
// 時間枠リソースは容量カウンタを持たないため、バージョン更新のみが対象になる
func (r *Resource) Occupy(quantity int) error {
	if r.Kind == KindCounter {
		if r.Available < quantity {
			return ErrInsufficientCapacity
		}
		r.Available -= quantity
	}
	r.UpdatedAt = time.Now()
	return nil
}

// Release は割当分の容量を戻す
func (r *Resource) Release(quantity int) {
	if r.Kind == KindCounter {
		r.Available += quantity
		if r.Available > r.Capacity {
			r.Available = r.Capacity
		}
	}
	r.UpdatedAt = time.Now()
}

// ChangeStatus は状態を変更し、変化があったかを返す
func (r *Resource) ChangeStatus(status Status) (bool, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return false, err
	}
	if r.Status == status {
		return false, nil
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return true, nil
}

// Validate はリソースの検証を行う
func (r *Resource) Validate() error {
	if r.Name == "" {
		return ErrNameRequired
	}
	switch r.Kind {
	case KindInterval:
		if r.Capacity != 1 {
			return ErrIntervalCapacityFixed
		}
	case KindCounter:
		if r.Capacity <= 0 {
			return ErrInvalidCapacity
		}
	default:
		return ErrInvalidKind
	}
	return nil
}
