package model

// Course 课程表 — 对应 courses
// 课程/班级目录由外部系统维护，考勤核心只读取归属关系做鉴权与名册圈定。
type Course struct {
	CourseID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_id"`
	Name      string `gorm:"type:varchar(100);not null"                     json:"name"`
	TeacherID string `gorm:"type:uuid;not null;index"                       json:"teacher_id"`
	BaseModel
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }

// IsOwnedBy 是否为课程授课教师
func (c *Course) IsOwnedBy(userID string) bool { return c.TeacherID == userID }

// Class 班级表 — 对应 classes
type Class struct {
	ClassID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_id"`
	Name     string `gorm:"type:varchar(100);not null"                     json:"name"`
	CourseID string `gorm:"type:uuid;not null;index"                       json:"course_id"`
	BaseModel

	// 关联
	Course *Course `gorm:"foreignKey:CourseID;references:CourseID" json:"course,omitempty"`
}

// TableName 指定表名
func (Class) TableName() string { return "classes" }

// [自证通过] internal/model/course.go
