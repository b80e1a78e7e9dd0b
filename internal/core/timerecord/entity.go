package timerecord

import "time"

// Type は打刻の種別です。
type Type string

const (
	TypeArrival Type = "ARRIVAL"
	TypeExit    Type = "EXIT"
)

// TimeRecord は従業員の出勤・退勤の打刻です。作成後は変更されません。
type TimeRecord struct {
	ID         int64
	EmployeeID int64
	DateTime   time.Time
	Type       Type
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

// 射影・フィルタで利用するフィールド名です。
const (
	FieldID         = "id"
	FieldEmployeeID = "employeeId"
	FieldDateTime   = "dateTime"
	FieldType       = "type"
	FieldCreatedAt  = "createdAt"
	FieldUpdatedAt  = "updatedAt"
)

// AllowedFields はレスポンスで選択可能なフィールドの一覧です。
var AllowedFields = []string{
	FieldID,
	FieldEmployeeID,
	FieldDateTime,
	FieldType,
	FieldCreatedAt,
	FieldUpdatedAt,
}

// IsValid は種別が既知の値かを返します。
func (t Type) IsValid() bool {
	switch t {
	case TypeArrival, TypeExit:
		return true
	default:
		return false
	}
}
