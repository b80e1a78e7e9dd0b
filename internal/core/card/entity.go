package card

import "time"

// Card は従業員に割り当てる物理的なアクセスカードです。
// Active が false のカードは「未割り当て」として扱います。
type Card struct {
	ID         int64
	EmployeeID int64
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	Employee   *EmployeeSnapshot
}

// EmployeeSnapshot はカードに紐づく従業員情報のスナップショットです。
type EmployeeSnapshot struct {
	ID   int64
	Name string
}

// 射影・フィルタで利用するフィールド名です。
const (
	FieldID         = "id"
	FieldEmployeeID = "employeeId"
	FieldActive     = "active"
	FieldCreatedAt  = "createdAt"
	FieldUpdatedAt  = "updatedAt"
)

// AllowedFields はレスポンスで選択可能なフィールドの一覧です。
var AllowedFields = []string{
	FieldID,
	FieldEmployeeID,
	FieldActive,
	FieldCreatedAt,
	FieldUpdatedAt,
}
