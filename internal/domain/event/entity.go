package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-campus-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campus-reservation/internal/domain/resource"
)

// Type はドメインイベントの種別を表す
type Type string

const (
	TypeReservationConfirmed  Type = "Confirmed"
	TypeReservationCancelled  Type = "Cancelled"
	TypeReservationRejected   Type = "Rejected"
	TypeResourceStatusChanged Type = "ResourceStatusChanged"
	TypeOutcomeSucceeded      Type = "OutcomeSucceeded"
	TypeOutcomeFailed         Type = "OutcomeFailed"
)

var routingKeys = map[Type]string{
	TypeReservationConfirmed:  "reservation.confirmed",
	TypeReservationCancelled:  "reservation.cancelled",
	TypeReservationRejected:   "reservation.rejected",
	TypeResourceStatusChanged: "resource.status_changed",
	TypeOutcomeSucceeded:      "outcome.succeeded",
	TypeOutcomeFailed:         "outcome.failed",
}

// RoutingKey は購読側が振り分けに使うキーを返す
func (t Type) RoutingKey() string {
	return routingKeys[t]
}

// Known は定義済みの種別かを返す
func (t Type) Known() bool {
	_, ok := routingKeys[t]
	return ok
}

// Event はサービス間で受け渡すドメインイベント
// JSON 表現がそのままメッセージ本文になる
type Event struct {
	ID            string          `json:"event_id"`
	Type          Type            `json:"type"`
	ResourceID    string          `json:"resource_id"`
	ReservationID string          `json:"reservation_id,omitempty"`
	RequesterID   string          `json:"requester_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	OccurredAt    time.Time       `json:"timestamp"`
}

// ReservationPayload は予約イベントの本文
type ReservationPayload struct {
	Status   reservation.Status `json:"status"`
	Reason   string             `json:"reason,omitempty"`
	StartAt  *time.Time         `json:"start_at,omitempty"`
	EndAt    *time.Time         `json:"end_at,omitempty"`
	Quantity int                `json:"quantity,omitempty"`
	Purpose  string             `json:"purpose,omitempty"`
}

// StatusChangedPayload はリソース状態変更イベントの本文
type StatusChangedPayload struct {
	Previous resource.Status `json:"previous"`
	Current  resource.Status `json:"current"`
}

// OutcomePayload は下流サービスが返す結果イベントの本文
type OutcomePayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewReservationEvent は予約の状態遷移からイベントを作成する
func NewReservationEvent(t Type, r *reservation.Reservation) (*Event, error) {
	p := ReservationPayload{Status: r.Status, Reason: r.Reason, Quantity: r.Quantity, Purpose: r.Purpose}
	if r.Interval != nil {
		start, end := r.Interval.Start, r.Interval.End
		p.StartAt, p.EndAt = &start, &end
	}
	ev, err := newEvent(t, r.ResourceID, p)
	if err != nil {
		return nil, err
	}
	ev.ReservationID = r.ID
	ev.RequesterID = r.RequesterID
	return ev, nil
}

// NewResourceStatusChanged はリソース状態変更イベントを作成する
func NewResourceStatusChanged(res *resource.Resource, previous resource.Status) (*Event, error) {
	return newEvent(TypeResourceStatusChanged, res.ID, StatusChangedPayload{Previous: previous, Current: res.Status})
}

func newEvent(t Type, resourceID string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("イベント本文のエンコードに失敗: %w", err)
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       t,
		ResourceID: resourceID,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Key は同一集約のイベントを同じパーティションに載せるためのキーを返す
func (e *Event) Key() string {
	if e.ReservationID != "" {
		return "reservation:" + e.ReservationID
	}
	return "resource:" + e.ResourceID
}

// Marshal はイベントをメッセージ本文にエンコードする
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal はメッセージ本文をイベントにデコードする
func Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if e.ID == "" || e.Type == "" {
		return nil, ErrInvalidEnvelope
	}
	return &e, nil
}

// StatusChange は状態変更イベントの本文を取り出す
func (e *Event) StatusChange() (StatusChangedPayload, error) {
	var p StatusChangedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return p, nil
}

// Outcome は結果イベントの本文を取り出す（本文が空なら理由なし）
func (e *Event) Outcome() OutcomePayload {
	var p OutcomePayload
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &p)
	}
	return p
}
