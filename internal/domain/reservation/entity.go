package reservation

import (
	"time"
	"unicode/utf8"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// ActiveStatuses は容量を占有している状態の一覧
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

// IsActive は容量を占有している状態かを返す
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal は以降の遷移がない終端状態かを返す
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusRejected || s == StatusCompleted
}

// 却下理由
const (
	ReasonResourceUnavailable = "resource_unavailable"
	ReasonOutcomeFailed       = "outcome_failed"
)

// MaxPurposeLength は利用目的の最大文字数
const MaxPurposeLength = 500

// Reservation は予約エンティティを表す
type Reservation struct {
	ID          string
	ResourceID  string
	RequesterID string
	Interval    *Interval // 時間枠リソースのみ
	Quantity    int       // 在庫リソースのみ
	Status      Status
	Reason      string
	Purpose     string // 利用目的（任意）
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int // 楽観的ロック用（リソースの Version とは独立）
}

// NewReservation は新しい予約を作成する
func NewReservation(resourceID, requesterID string, alloc Allocation) *Reservation {
	now := time.Now()
	return &Reservation{
		ResourceID:  resourceID,
		RequesterID: requesterID,
		Interval:    alloc.Interval,
		Quantity:    alloc.Quantity,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     0,
	}
}

// Allocation は予約が占有している割当を返す
func (r *Reservation) Allocation() Allocation {
	return Allocation{Interval: r.Interval, Quantity: r.Quantity}
}

// IsActive は予約が容量を占有しているかを返す
func (r *Reservation) IsActive() bool {
	return r.Status.IsActive()
}

// IsOwnedBy は予約者本人かを返す
func (r *Reservation) IsOwnedBy(requesterID string) bool {
	return r.RequesterID == requesterID
}

// IsUpcoming は開始前の有効な時間枠予約かを返す
func (r *Reservation) IsUpcoming(now time.Time) bool {
	return r.IsActive() && r.Interval != nil && r.Interval.Start.After(now)
}

// HasElapsed は時間枠の終了時刻を過ぎているかを返す
func (r *Reservation) HasElapsed(now time.Time) bool {
	return r.Interval != nil && !now.Before(r.Interval.End)
}

// Confirm は予約を確定する
func (r *Reservation) Confirm() error {
	if r.Status != StatusPending {
		return ErrInvalidState
	}
	r.transition(StatusConfirmed, "")
	return nil
}

// Cancel は予約をキャンセルする（予約者または管理者による操作）
func (r *Reservation) Cancel() error {
	if !r.IsActive() {
		return ErrInvalidState
	}
	r.transition(StatusCancelled, "")
	return nil
}

// Reject はシステム都合で予約を却下する
func (r *Reservation) Reject(reason string) error {
	if !r.IsActive() {
		return ErrInvalidState
	}
	r.transition(StatusRejected, reason)
	return nil
}

// Complete は予約を完了にする
func (r *Reservation) Complete() error {
	if r.Status != StatusConfirmed {
		return ErrInvalidState
	}
	r.transition(StatusCompleted, "")
	return nil
}

func (r *Reservation) transition(to Status, reason string) {
	r.Status = to
	r.Reason = reason
	r.UpdatedAt = time.Now()
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.ResourceID == "" {
		return ErrResourceIDRequired
	}
	if r.RequesterID == "" {
		return ErrRequesterIDRequired
	}
	if utf8.RuneCountInString(r.Purpose) > MaxPurposeLength {
		return ErrPurposeTooLong
	}
	return r.Allocation().Validate()
}
