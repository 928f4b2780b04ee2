package dto

// ── 统计模块 DTO ──

// StatusCounts 各状态人次统计
type StatusCounts struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
	Leave   int `json:"leave"`
	Total   int `json:"total"`
}

// TrendPoint 按日趋势点（键为签到日期）
type TrendPoint struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Present int    `json:"present"`
	Late    int    `json:"late"`
}

// StudentBrief 学生摘要（用于全勤/预警名单）
type StudentBrief struct {
	StudentID   string `json:"student_id"`
	Name        string `json:"name,omitempty"`
	StudentNo   string `json:"student_no,omitempty"`
	AbsentCount int    `json:"absent_count,omitempty"`
}

// CourseStatisticsResponse 课程维度考勤统计
type CourseStatisticsResponse struct {
	CourseID       string         `json:"course_id"`
	TaskCount      int            `json:"task_count"`
	Counts         StatusCounts   `json:"counts"`
	AttendanceRate float64        `json:"attendance_rate"` // (present+late)/total
	Trend          []TrendPoint   `json:"trend"`           // 近7天按日
	MethodCounts   map[string]int `json:"method_counts"`   // 按签到方式
	PerfectList    []StudentBrief `json:"perfect_list"`    // 零缺勤
	AtRiskList     []StudentBrief `json:"at_risk_list"`    // 缺勤次数达到预警阈值
}

// CourseStatBrief 学生统计中的单课程分项
type CourseStatBrief struct {
	CourseID       string       `json:"course_id"`
	CourseName     string       `json:"course_name,omitempty"`
	Counts         StatusCounts `json:"counts"`
	AttendanceRate float64      `json:"attendance_rate"`
}

// StudentStatisticsResponse 学生维度考勤统计
type StudentStatisticsResponse struct {
	StudentID      string            `json:"student_id"`
	Counts         StatusCounts      `json:"counts"`
	AttendanceRate float64           `json:"attendance_rate"`
	Trend          []TrendPoint      `json:"trend"` // 近30天按日
	ByCourse       []CourseStatBrief `json:"by_course"`
	RecentRecords  []RecordResponse  `json:"recent_records"` // 最近10条
}

// [自证通过] internal/dto/statistics.go
