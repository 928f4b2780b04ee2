package model

import "time"

// 签到记录状态
const (
	CheckInStatusAbsent  = "absent"  // 缺勤（建任务时的默认值，未签到即缺勤）
	CheckInStatusPresent = "present" // 出勤
	CheckInStatusLate    = "late"    // 迟到
	CheckInStatusLeave   = "leave"   // 请假（仅教师登记）
)

// ValidCheckInStatus 判断签到状态是否合法
func ValidCheckInStatus(s string) bool {
	switch s {
	case CheckInStatusAbsent, CheckInStatusPresent, CheckInStatusLate, CheckInStatusLeave:
		return true
	}
	return false
}

// AttendanceRecord 签到记录表 — 对应 attendance_records
//
// 每个任务为每名目标学生预建一行 absent 记录，(task_id, student_id) 唯一约束
// 配合 "WHERE status='absent'" 条件更新构成签到的并发正确性保障。
type AttendanceRecord struct {
	RecordID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"record_id"`
	TaskID    string `gorm:"type:uuid;not null;uniqueIndex:uq_record_task_student"     json:"task_id"`
	StudentID string `gorm:"type:uuid;not null;uniqueIndex:uq_record_task_student"     json:"student_id"`

	Status        string     `gorm:"type:varchar(20);not null;default:'absent'" json:"status"`
	CheckInTime   *time.Time `json:"check_in_time,omitempty"`
	CheckInMethod *string    `gorm:"type:varchar(20)" json:"check_in_method,omitempty"` // 成功策略的标签

	// 验证元数据
	Distance   *float64 `gorm:"type:numeric(10,2)" json:"distance,omitempty"`   // location: 实际距离（米）
	Similarity *float64 `gorm:"type:numeric(4,3)"  json:"similarity,omitempty"` // face: 相似度得分
	Remark     *string  `gorm:"type:varchar(255)"  json:"remark,omitempty"`     // manual/leave: 备注
	BaseModel

	// 关联
	Task    *AttendanceTask `gorm:"foreignKey:TaskID;references:TaskID"     json:"task,omitempty"`
	Student *User           `gorm:"foreignKey:StudentID;references:UserID"  json:"student,omitempty"`
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }

// IsCheckedIn 是否已成功签到（present/late）
func (r *AttendanceRecord) IsCheckedIn() bool {
	return r.Status == CheckInStatusPresent || r.Status == CheckInStatusLate
}

// [自证通过] internal/model/attendance_record.go
