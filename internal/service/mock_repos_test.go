package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Adcage/EduInsight-sub000/internal/model"
	"github.com/Adcage/EduInsight-sub000/internal/repository"
	pkgerrors "github.com/Adcage/EduInsight-sub000/pkg/errors"
)

// ── 固定时钟 ──

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

// ── Mock Matcher ──

type mockMatcher struct {
	similarity float64
	err        error
}

func (m *mockMatcher) Match(_ context.Context, _, _ string) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.similarity, nil
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) add(user *model.User) *model.User {
	if user.UserID == "" {
		user.UserID = "user-" + user.StudentNo
	}
	if user.Role == "" {
		user.Role = model.RoleStudent
	}
	user.Active = true
	m.users[user.UserID] = user
	return user
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByStudentNo(_ context.Context, no string) (*model.User, error) {
	for _, u := range m.users {
		if u.StudentNo == no {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListStudentsByClass(_ context.Context, classID string, ids []string) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		if u.Role != model.RoleStudent || !u.Active || u.ClassID == nil || *u.ClassID != classID {
			continue
		}
		if len(ids) > 0 && !containsID(ids, u.UserID) {
			continue
		}
		result = append(result, *u)
	}
	return result, nil
}

func (m *mockUserRepo) ListStudentsByCourse(_ context.Context, _ string, ids []string) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		if u.Role != model.RoleStudent || !u.Active {
			continue
		}
		if len(ids) > 0 && !containsID(ids, u.UserID) {
			continue
		}
		result = append(result, *u)
	}
	return result, nil
}

func (m *mockUserRepo) UpdateFaceTemplate(_ context.Context, userID, template string) error {
	u, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.FaceTemplate = &template
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	courses map[string]*model.Course
	classes map[string]*model.Class
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{
		courses: make(map[string]*model.Course),
		classes: make(map[string]*model.Class),
	}
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) GetClass(_ context.Context, classID string) (*model.Class, error) {
	if c, ok := m.classes[classID]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) ListByStudent(_ context.Context, studentID string) ([]model.Course, error) {
	var result []model.Course
	for _, c := range m.courses {
		result = append(result, *c)
	}
	return result, nil
}

// ── Mock AttendanceTaskRepository ──

type mockTaskRepo struct {
	tasks   map[string]*model.AttendanceTask
	records *mockRecordRepo // CreateWithRecords 联动落记录
	seq     int
}

func newMockTaskRepo(records *mockRecordRepo) *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[string]*model.AttendanceTask), records: records}
}

func (m *mockTaskRepo) CreateWithRecords(_ context.Context, task *model.AttendanceTask, records []model.AttendanceRecord) error {
	if task.TaskID == "" {
		m.seq++
		task.TaskID = fmt.Sprintf("task-%03d", m.seq)
	}
	m.tasks[task.TaskID] = task
	for i := range records {
		records[i].TaskID = task.TaskID
		m.records.add(&records[i])
	}
	return nil
}

func (m *mockTaskRepo) GetByID(_ context.Context, id string) (*model.AttendanceTask, error) {
	if t, ok := m.tasks[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTaskRepo) ListByTeacher(_ context.Context, teacherID, courseID, status string, _, _ int) ([]model.AttendanceTask, int64, error) {
	var result []model.AttendanceTask
	for _, t := range m.tasks {
		if t.TeacherID != teacherID {
			continue
		}
		if courseID != "" && t.CourseID != courseID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		result = append(result, *t)
	}
	return result, int64(len(result)), nil
}

func (m *mockTaskRepo) ListByClass(_ context.Context, classID, status string, _, _ int) ([]model.AttendanceTask, int64, error) {
	var result []model.AttendanceTask
	for _, t := range m.tasks {
		if t.ClassID != nil && *t.ClassID != classID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		result = append(result, *t)
	}
	return result, int64(len(result)), nil
}

func (m *mockTaskRepo) ListByCourse(_ context.Context, courseID string) ([]model.AttendanceTask, error) {
	var result []model.AttendanceTask
	for _, t := range m.tasks {
		if t.CourseID == courseID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTaskRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	t, ok := m.tasks[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			t.Title = v.(string)
		case "location_name":
			name := v.(string)
			t.LocationName = &name
		case "start_time":
			t.StartTime = v.(time.Time)
		case "end_time":
			t.EndTime = v.(time.Time)
		case "status":
			t.Status = v.(string)
		}
	}
	return nil
}

func (m *mockTaskRepo) UpdateStatus(_ context.Context, id, status string) error {
	t, ok := m.tasks[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.Status = status
	return nil
}

func (m *mockTaskRepo) UpdateToken(_ context.Context, id, token string) error {
	t, ok := m.tasks[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.QRToken = &token
	return nil
}

func (m *mockTaskRepo) Delete(_ context.Context, id string) error {
	delete(m.tasks, id)
	m.records.deleteByTask(id)
	return nil
}

// ── Mock AttendanceRecordRepository ──

// mockRecordRepo 用互斥锁模拟数据库条件更新的原子性
type mockRecordRepo struct {
	mu      sync.Mutex
	records map[string]*model.AttendanceRecord
	seq     int
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[string]*model.AttendanceRecord)}
}

func (m *mockRecordRepo) add(rec *model.AttendanceRecord) *model.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.RecordID == "" {
		m.seq++
		rec.RecordID = fmt.Sprintf("rec-%03d", m.seq)
	}
	if rec.Status == "" {
		rec.Status = model.CheckInStatusAbsent
	}
	clone := *rec
	m.records[clone.RecordID] = &clone
	return &clone
}

func (m *mockRecordRepo) GetByTaskAndStudent(_ context.Context, taskID, studentID string) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.TaskID == taskID && r.StudentID == studentID {
			clone := *r
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRecordRepo) ListByTask(_ context.Context, taskID string) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.AttendanceRecord
	for _, r := range m.records {
		if r.TaskID == taskID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockRecordRepo) CountByTaskStatus(_ context.Context, taskID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range m.records {
		if r.TaskID == taskID {
			counts[r.Status]++
		}
	}
	return counts, nil
}

func (m *mockRecordRepo) CheckIn(_ context.Context, recordID string, upd repository.CheckInUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok || r.Status != model.CheckInStatusAbsent {
		return pkgerrors.ErrOptimisticLock
	}
	r.Status = upd.Status
	t := upd.Time
	r.CheckInTime = &t
	method := upd.Method
	r.CheckInMethod = &method
	r.Distance = upd.Distance
	r.Similarity = upd.Similarity
	return nil
}

func (m *mockRecordRepo) Override(_ context.Context, recordID string, upd repository.OverrideUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Status = upd.Status
	r.CheckInTime = upd.Time
	method := upd.Method
	r.CheckInMethod = &method
	remark := upd.Remark
	r.Remark = &remark
	return nil
}

func (m *mockRecordRepo) ListByCourse(_ context.Context, _ string) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.AttendanceRecord
	for _, r := range m.records {
		result = append(result, *r)
	}
	return result, nil
}

func (m *mockRecordRepo) ListByStudent(_ context.Context, studentID string) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.AttendanceRecord
	for _, r := range m.records {
		if r.StudentID == studentID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockRecordRepo) deleteByTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.TaskID == taskID {
			delete(m.records, id)
		}
	}
}

// [自证通过] internal/service/mock_repos_test.go
