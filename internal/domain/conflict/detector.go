// Package conflict は要求された割当が既存の有効な予約と衝突するかを判定する。
// 判定は読み取り時点のスナップショットに対して行う助言的なもので、
// 排他性の最終的な保証は台帳への条件付き書き込みが担う。
package conflict

import (
	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
)

// Result は衝突判定の結果
type Result struct {
	// Conflicts は重なった予約のID（時間枠リソースのみ）
	Conflicts []string
	// Available は判定時点の空き数（在庫リソースのみ）
	Available int
	// Requested は要求数量（在庫リソースのみ）
	Requested int
}

// HasConflict は割当できない場合に true を返す
func (r Result) HasConflict() bool {
	return len(r.Conflicts) > 0 || r.Available < r.Requested
}

// Detect は active（pending / confirmed の予約）に対して alloc が衝突するかを判定する
// 終端状態の予約が混ざっていても無視する
func Detect(res *resource.Resource, active []*reservation.Reservation, alloc reservation.Allocation) (Result, error) {
	switch res.Kind {
	case resource.KindInterval:
		if !alloc.IsInterval() {
			return Result{}, resource.ErrKindMismatch
		}
		return detectInterval(active, *alloc.Interval), nil
	case resource.KindCounter:
		if alloc.IsInterval() {
			return Result{}, resource.ErrKindMismatch
		}
		return detectCounter(res, active, alloc.Quantity), nil
	}
	return Result{}, resource.ErrInvalidKind
}

func detectInterval(active []*reservation.Reservation, requested reservation.Interval) Result {
	var result Result
	for _, r := range active {
		if !r.IsActive() || r.Interval == nil {
			continue
		}
		if r.Interval.Overlaps(requested) {
			result.Conflicts = append(result.Conflicts, r.ID)
		}
	}
	return result
}

// 完了済みの予約は容量を消費したまま有効集合から外れるため、台帳の残量でも頭打ちにする
func detectCounter(res *resource.Resource, active []*reservation.Reservation, quantity int) Result {
	used := 0
	for _, r := range active {
		if r.IsActive() {
			used += r.Quantity
		}
	}
	free := res.Capacity - used
	if res.Available < free {
		free = res.Available
	}
	return Result{Available: free, Requested: quantity}
}
