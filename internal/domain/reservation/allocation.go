package reservation

import "time"

// Interval は半開区間 [Start, End) の時間帯を表す
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps は2つの半開区間が重なるかを返す
// 一方の End ともう一方の Start が等しい場合（隣接）は重ならない
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Valid は End が Start より後であるかを返す
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Allocation は予約で要求する割当量
// 時間枠リソースでは Interval、在庫リソースでは Quantity のどちらか一方を使う
type Allocation struct {
	Interval *Interval
	Quantity int
}

// NewIntervalAllocation は時間枠の割当を作成する
func NewIntervalAllocation(start, end time.Time) Allocation {
	return Allocation{Interval: &Interval{Start: start, End: end}}
}

// NewQuantityAllocation は在庫数の割当を作成する
func NewQuantityAllocation(quantity int) Allocation {
	return Allocation{Quantity: quantity}
}

// IsInterval は時間枠の割当かを返す
func (a Allocation) IsInterval() bool {
	return a.Interval != nil
}

// Units は台帳から確保する単位数を返す（時間枠は0）
func (a Allocation) Units() int {
	if a.IsInterval() {
		return 0
	}
	return a.Quantity
}

// Validate は割当の形式を検証する
func (a Allocation) Validate() error {
	switch {
	case a.Interval != nil && a.Quantity != 0:
		return ErrAllocationRequired
	case a.Interval != nil:
		if !a.Interval.Valid() {
			return ErrInvalidInterval
		}
	case a.Quantity == 0:
		return ErrAllocationRequired
	case a.Quantity < 0:
		return ErrInvalidQuantity
	}
	return nil
}
