package domain

// CreatedAtLayout is the persisted form of Record.CreatedAt: UTC, second
// precision, trailing Z. Lexical order equals chronological order.
const CreatedAtLayout = "2006-01-02T15:04:05Z"

// Field names accepted from the intake form.
const (
	FieldName          = "name"
	FieldPhone         = "phone"
	FieldBrand         = "brand"
	FieldProblem       = "problem"
	FieldPreferredTime = "preferred_time"
)

// ValidatedSubmission is a trimmed submission whose name and phone are non-empty.
type ValidatedSubmission struct {
	Name          string `form:"name" validate:"required"`
	Phone         string `form:"phone" validate:"required"`
	Brand         string `form:"brand"`
	Problem       string `form:"problem"`
	PreferredTime string `form:"preferred_time"`
}

// Record is one persisted row of the requests table. Records are never
// updated or deleted.
type Record struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string `gorm:"not null" json:"name"`
	Phone         string `gorm:"not null" json:"phone"`
	Brand         string `json:"brand"`
	Problem       string `json:"problem"`
	PreferredTime string `json:"preferred_time"`
	CreatedAt     string `gorm:"not null;autoCreateTime:false" json:"created_at"`
	SourceIP      string `gorm:"column:source_ip" json:"source_ip"`
	UserAgent     string `json:"user_agent"`
}

func (Record) TableName() string { return "requests" }

// Submission returns the validated fields carried by r.
func (r Record) Submission() ValidatedSubmission {
	return ValidatedSubmission{
		Name:          r.Name,
		Phone:         r.Phone,
		Brand:         r.Brand,
		Problem:       r.Problem,
		PreferredTime: r.PreferredTime,
	}
}

// NewRecord prepares an unsaved record; the store assigns ID and CreatedAt.
func NewRecord(sub ValidatedSubmission, sourceIP, userAgent string) Record {
	return Record{
		Name:          sub.Name,
		Phone:         sub.Phone,
		Brand:         sub.Brand,
		Problem:       sub.Problem,
		PreferredTime: sub.PreferredTime,
		SourceIP:      sourceIP,
		UserAgent:     userAgent,
	}
}
