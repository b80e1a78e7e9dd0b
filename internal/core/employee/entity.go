package employee

import (
	"strings"
	"time"
)

// Employee は勤怠管理の対象となる従業員エンティティです。
type Employee struct {
	ID          int64
	Name        string
	CPF         string
	ArrivalTime string
	ExitTime    string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// 射影・フィルタで利用するフィールド名です。
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldCPF         = "cpf"
	FieldArrivalTime = "arrivalTime"
	FieldExitTime    = "exitTime"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// AllowedFields はレスポンスで選択可能なフィールドの一覧です。
var AllowedFields = []string{
	FieldID,
	FieldName,
	FieldCPF,
	FieldArrivalTime,
	FieldExitTime,
	FieldCreatedAt,
	FieldUpdatedAt,
}

// FirstName は氏名の先頭の語を返します。
func (e *Employee) FirstName() string {
	if e == nil {
		return ""
	}
	parts := strings.Fields(e.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
