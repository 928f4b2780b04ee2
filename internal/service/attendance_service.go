package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Adcage/EduInsight-sub000/config"
	"github.com/Adcage/EduInsight-sub000/internal/dto"
	"github.com/Adcage/EduInsight-sub000/internal/model"
	"github.com/Adcage/EduInsight-sub000/internal/repository"
	apperrors "github.com/Adcage/EduInsight-sub000/pkg/errors"
)

// ── 考勤任务模块业务错误 ──

var (
	ErrTaskNotFound       = apperrors.NotFound("考勤任务不存在")
	ErrCourseNotFound     = apperrors.NotFound("课程不存在")
	ErrClassNotFound      = apperrors.NotFound("班级不存在")
	ErrNotCourseOwner     = apperrors.Permission("无权操作该课程")
	ErrNotTaskOwner       = apperrors.Permission("无权操作该考勤任务")
	ErrWindowInvalid      = apperrors.Validation("结束时间必须晚于开始时间")
	ErrAttendanceTypeBad  = apperrors.Validation("不支持的考勤方式")
	ErrGesturePatternNeed = apperrors.Validation("手势签到任务必须配置手势图案")
	ErrGeofenceNeed       = apperrors.Validation("位置签到任务必须配置地理围栏")
	ErrClassNotInCourse   = apperrors.Validation("班级不属于该课程")
	ErrEmptyRoster        = apperrors.Validation("考勤对象名单为空")
	ErrDeleteNotPending   = apperrors.Conflict("仅未开始的任务可以删除")
	ErrTaskAlreadyActive  = apperrors.Conflict("任务已开始")
	ErrTaskAlreadyEnded   = apperrors.Conflict("任务已结束")
	ErrTaskNotStarted     = apperrors.Conflict("任务尚未开始")
	ErrStatusRegression   = apperrors.Validation("考勤状态不可回退")
	ErrTokenOnlyQRCode    = apperrors.Validation("仅二维码任务可生成签到口令")
)

// AttendanceService 考勤任务业务接口
type AttendanceService interface {
	Create(ctx context.Context, req *dto.CreateTaskRequest, teacherID string) (*dto.TaskResponse, error)
	List(ctx context.Context, req *dto.TaskListRequest, teacherID string) (*dto.TaskListResponse, error)
	GetDetail(ctx context.Context, taskID, callerID string) (*dto.TaskDetailResponse, error)
	Update(ctx context.Context, taskID string, req *dto.UpdateTaskRequest, callerID string) (*dto.TaskResponse, error)
	Delete(ctx context.Context, taskID, callerID string) error
	// Start 提前开始任务：窗口起点移到当前时刻
	Start(ctx context.Context, taskID, callerID string) error
	// End 手动结束任务，不可逆
	End(ctx context.Context, taskID, callerID string) error
	// IssueToken 生成/轮换签到口令，后写覆盖先写，旧口令立即失效
	IssueToken(ctx context.Context, taskID, callerID string) (*dto.QRTokenResponse, error)
	ListRecords(ctx context.Context, taskID, callerID string) ([]dto.RecordResponse, error)
	// 学生侧
	ListForStudent(ctx context.Context, req *dto.TaskListRequest, studentID string) (*dto.StudentTaskListResponse, error)
	GetForStudent(ctx context.Context, taskID, studentID string) (*dto.StudentTaskResponse, error)
}

type attendanceService struct {
	cfg    *config.Config
	repo   *repository.Repository
	clock  Clock
	logger *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(cfg *config.Config, repo *repository.Repository, clock Clock, logger *zap.Logger) AttendanceService {
	return &attendanceService{cfg: cfg, repo: repo, clock: clock, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *attendanceService) Create(ctx context.Context, req *dto.CreateTaskRequest, teacherID string) (*dto.TaskResponse, error) {
	course, err := s.repo.Course.GetByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("course_id", req.CourseID), zap.Error(err))
		return nil, err
	}
	if !course.IsOwnedBy(teacherID) {
		return nil, ErrNotCourseOwner
	}

	if !req.EndTime.After(req.StartTime) {
		return nil, ErrWindowInvalid
	}
	if !model.ValidAttendanceType(req.AttendanceType) {
		return nil, ErrAttendanceTypeBad
	}

	task := &model.AttendanceTask{
		Title:          req.Title,
		CourseID:       req.CourseID,
		ClassID:        req.ClassID,
		TeacherID:      teacherID,
		AttendanceType: req.AttendanceType,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	}
	if err := s.applyMethodConfig(task, req); err != nil {
		return nil, err
	}
	task.Status = task.EffectiveStatus(s.clock.Now())

	// 圈定名册：指定班级取班级在读学生，否则取课程全部学生
	var students []model.User
	if req.ClassID != nil {
		class, err := s.repo.Course.GetClass(ctx, *req.ClassID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrClassNotFound
			}
			s.logger.Error("查询班级失败", zap.String("class_id", *req.ClassID), zap.Error(err))
			return nil, err
		}
		if class.CourseID != req.CourseID {
			return nil, ErrClassNotInCourse
		}
		students, err = s.repo.User.ListStudentsByClass(ctx, *req.ClassID, req.StudentIDs)
		if err != nil {
			s.logger.Error("查询班级学生失败", zap.String("class_id", *req.ClassID), zap.Error(err))
			return nil, err
		}
	} else {
		students, err = s.repo.User.ListStudentsByCourse(ctx, req.CourseID, req.StudentIDs)
		if err != nil {
			s.logger.Error("查询课程学生失败", zap.String("course_id", req.CourseID), zap.Error(err))
			return nil, err
		}
	}
	if len(students) == 0 {
		return nil, ErrEmptyRoster
	}

	// 为每名学生预建 absent 记录，与任务同事务落库
	records := make([]model.AttendanceRecord, 0, len(students))
	for i := range students {
		records = append(records, model.AttendanceRecord{
			StudentID: students[i].UserID,
			Status:    model.CheckInStatusAbsent,
		})
	}

	if err := s.repo.Task.CreateWithRecords(ctx, task, records); err != nil {
		s.logger.Error("创建考勤任务失败", zap.String("course_id", req.CourseID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("考勤任务已创建",
		zap.String("task_id", task.TaskID),
		zap.String("attendance_type", task.AttendanceType),
		zap.Int("roster_size", len(records)))

	task.Course = course
	return s.toTaskResponse(task, true), nil
}

// applyMethodConfig 校验并落入所选方式的配置
func (s *attendanceService) applyMethodConfig(task *model.AttendanceTask, req *dto.CreateTaskRequest) error {
	switch req.AttendanceType {
	case model.AttendanceTypeGesture:
		if len(req.GesturePattern) == 0 {
			return ErrGesturePatternNeed
		}
		limit := s.cfg.Attendance.GestureGridSize * s.cfg.Attendance.GestureGridSize
		for _, p := range req.GesturePattern {
			if p < 0 || p >= limit {
				return ErrGestureOutOfGrid
			}
		}
		task.GesturePattern = model.IntArray(req.GesturePattern)
	case model.AttendanceTypeLocation:
		if req.Geofence == nil {
			return ErrGeofenceNeed
		}
		task.LocationLat = &req.Geofence.Lat
		task.LocationLng = &req.Geofence.Lng
		task.LocationRadius = &req.Geofence.Radius
		if req.Geofence.Name != "" {
			task.LocationName = &req.Geofence.Name
		}
	case model.AttendanceTypeFace:
		task.FaceThreshold = req.FaceThreshold
	}
	return nil
}

// ────────────────────── List / GetDetail ──────────────────────

func (s *attendanceService) List(ctx context.Context, req *dto.TaskListRequest, teacherID string) (*dto.TaskListResponse, error) {
	tasks, total, err := s.repo.Task.ListByTeacher(ctx, teacherID, req.CourseID, req.Status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询任务列表失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}

	items := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, *s.toTaskResponse(&tasks[i], true))
	}
	return &dto.TaskListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Items:    items,
	}, nil
}

func (s *attendanceService) GetDetail(ctx context.Context, taskID, callerID string) (*dto.TaskDetailResponse, error) {
	task, err := s.getOwnedTask(ctx, taskID, callerID)
	if err != nil {
		return nil, err
	}
	s.reconcileStatus(ctx, task)

	counts, err := s.repo.Record.CountByTaskStatus(ctx, taskID)
	if err != nil {
		s.logger.Error("统计任务记录失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}

	detail := &dto.TaskDetailResponse{
		TaskResponse: *s.toTaskResponse(task, true),
		PresentCount: counts[model.CheckInStatusPresent],
		LateCount:    counts[model.CheckInStatusLate],
		AbsentCount:  counts[model.CheckInStatusAbsent],
		LeaveCount:   counts[model.CheckInStatusLeave],
	}
	detail.TotalCount = detail.PresentCount + detail.LateCount + detail.AbsentCount + detail.LeaveCount
	if detail.TotalCount > 0 {
		detail.AttendanceRate = float64(detail.PresentCount+detail.LateCount) / float64(detail.TotalCount)
	}
	return detail, nil
}

// ────────────────────── Update / Delete ──────────────────────

func (s *attendanceService) Update(ctx context.Context, taskID string, req *dto.UpdateTaskRequest, callerID string) (*dto.TaskResponse, error) {
	task, err := s.getOwnedTask(ctx, taskID, callerID)
	if err != nil {
		return nil, err
	}

	// 仅白名单字段可改
	fields := make(map[string]interface{})
	if req.Title != nil {
		fields["title"] = *req.Title
		task.Title = *req.Title
	}
	if req.LocationName != nil {
		fields["location_name"] = *req.LocationName
		task.LocationName = req.LocationName
	}
	if req.EndTime != nil {
		if !req.EndTime.After(task.StartTime) {
			return nil, ErrWindowInvalid
		}
		fields["end_time"] = *req.EndTime
		task.EndTime = *req.EndTime
	}
	if req.Status != nil {
		// 状态只进不退，以含时间窗口推导的实时状态为准
		current := task.EffectiveStatus(s.clock.Now())
		if current == model.TaskStatusEnded && *req.Status != model.TaskStatusEnded {
			return nil, ErrTaskAlreadyEnded
		}
		if taskStatusRank(*req.Status) < taskStatusRank(current) {
			return nil, ErrStatusRegression
		}
		fields["status"] = *req.Status
		task.Status = *req.Status
	}
	if len(fields) == 0 {
		return s.toTaskResponse(task, true), nil
	}

	if err := s.repo.Task.UpdateFields(ctx, taskID, fields); err != nil {
		s.logger.Error("更新任务失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	return s.toTaskResponse(task, true), nil
}

func (s *attendanceService) Delete(ctx context.Context, taskID, callerID string) error {
	task, err := s.getOwnedTask(ctx, taskID, callerID)
	if err != nil {
		return err
	}
	if task.EffectiveStatus(s.clock.Now()) != model.TaskStatusPending {
		return ErrDeleteNotPending
	}
	if err := s.repo.Task.Delete(ctx, taskID); err != nil {
		s.logger.Error("删除任务失败", zap.String("task_id", taskID), zap.Error(err))
		return err
	}
	s.logger.Info("考勤任务已删除", zap.String("task_id", taskID))
	return nil
}

// ────────────────────── Start / End ──────────────────────

func (s *attendanceService) Start(ctx context.Context, taskID, callerID string) error {
	task, err := s.getOwnedTask(ctx, taskID, callerID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	switch task.EffectiveStatus(now) {
	case model.TaskStatusActive:
		return ErrTaskAlreadyActive
	case model.TaskStatusEnded:
		return ErrTaskAlreadyEnded
	}

	// 提前开始：窗口起点前移到当前时刻
	err = s.repo.Task.UpdateFields(ctx, taskID, map[string]interface{}{
		"start_time": now,
		"status":     model.TaskStatusActive,
	})
	if err != nil {
		s.logger.Error("开始任务失败", zap.String("task_id", taskID), zap.Error(err))
		return err
	}
	s.logger.Info("考勤任务已开始", zap.String("task_id", taskID))
	return nil
}

func (s *attendanceService) End(ctx context.Context, taskID, callerID string) error {
	task, err := s.getOwnedTask(ctx, taskID, callerID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	switch task.EffectiveStatus(now) {
	case model.TaskStatusEnded:
		return ErrTaskAlreadyEnded
	case model.TaskStatusPending:
		return ErrTaskNotStarted
	}

	// 手动结束不可逆；窗口终点回收到当前时刻
	fields := map[string]interface{}{"status": model.TaskStatusEnded}
	if now.Before(task.EndTime) {
		fields["end_time"] = now
	}
	if err := s.repo.Task.UpdateFields(ctx, taskID, fields); err != nil {
		s.logger.Error("结束任务失败", zap.String("task_id", taskID), zap.Error(err))
		return err
	}
	s.logger.Info("考勤任务已结束", zap.String("task_id", taskID))
	return nil
}

// ────────────────────── IssueToken ──────────────────────

func (s *attendanceService) IssueToken(ctx context.Context, taskID, callerID string) (*dto.QRTokenResponse, error) {
	task, err := s.getOwnedTask(ctx, taskID, callerID)
	if err != nil {
		return nil, err
	}
	if task.AttendanceType != model.AttendanceTypeQRCode {
		return nil, ErrTokenOnlyQRCode
	}
	if task.EffectiveStatus(s.clock.Now()) == model.TaskStatusEnded {
		return nil, ErrTaskAlreadyEnded
	}

	token := uuid.NewString()
	if err := s.repo.Task.UpdateToken(ctx, taskID, token); err != nil {
		s.logger.Error("写入签到口令失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("签到口令已轮换", zap.String("task_id", taskID))

	return &dto.QRTokenResponse{TaskID: taskID, QRToken: token}, nil
}

// ────────────────────── ListRecords ──────────────────────

func (s *attendanceService) ListRecords(ctx context.Context, taskID, callerID string) ([]dto.RecordResponse, error) {
	if _, err := s.getOwnedTask(ctx, taskID, callerID); err != nil {
		return nil, err
	}
	records, err := s.repo.Record.ListByTask(ctx, taskID)
	if err != nil {
		s.logger.Error("查询任务记录失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.RecordResponse, 0, len(records))
	for i := range records {
		result = append(result, *toRecordResponse(&records[i]))
	}
	return result, nil
}

// ────────────────────── 学生侧 ──────────────────────

func (s *attendanceService) ListForStudent(ctx context.Context, req *dto.TaskListRequest, studentID string) (*dto.StudentTaskListResponse, error) {
	student, err := s.repo.User.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("用户不存在")
		}
		return nil, err
	}
	if student.ClassID == nil {
		return &dto.StudentTaskListResponse{
			Page:     req.GetPage(),
			PageSize: req.GetPageSize(),
			Items:    []dto.StudentTaskResponse{},
		}, nil
	}

	tasks, total, err := s.repo.Task.ListByClass(ctx, *student.ClassID, req.Status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询学生任务列表失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	items := make([]dto.StudentTaskResponse, 0, len(tasks))
	for i := range tasks {
		item := dto.StudentTaskResponse{TaskResponse: *s.toTaskResponse(&tasks[i], false)}
		if rec, err := s.repo.Record.GetByTaskAndStudent(ctx, tasks[i].TaskID, studentID); err == nil {
			item.MyRecord = toRecordResponse(rec)
			item.IsCheckedIn = rec.IsCheckedIn()
		}
		items = append(items, item)
	}
	return &dto.StudentTaskListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Items:    items,
	}, nil
}

func (s *attendanceService) GetForStudent(ctx context.Context, taskID, studentID string) (*dto.StudentTaskResponse, error) {
	task, err := s.repo.Task.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	s.reconcileStatus(ctx, task)

	rec, err := s.repo.Record.GetByTaskAndStudent(ctx, taskID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotInRoster
		}
		s.logger.Error("查询签到记录失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}

	return &dto.StudentTaskResponse{
		TaskResponse: *s.toTaskResponse(task, false),
		MyRecord:     toRecordResponse(rec),
		IsCheckedIn:  rec.IsCheckedIn(),
	}, nil
}

// ── 内部辅助方法 ──

// taskStatusRank 状态在生命周期中的序号，用于禁止回退
func taskStatusRank(status string) int {
	switch status {
	case model.TaskStatusPending:
		return 0
	case model.TaskStatusActive:
		return 1
	case model.TaskStatusEnded:
		return 2
	}
	return -1
}

func (s *attendanceService) getOwnedTask(ctx context.Context, taskID, callerID string) (*model.AttendanceTask, error) {
	task, err := s.repo.Task.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	if !task.IsOwnedBy(callerID) {
		return nil, ErrNotTaskOwner
	}
	return task, nil
}

// reconcileStatus 读路径的持久化状态校准。
// 实时状态始终由 EffectiveStatus 推导，这里仅在偏差时顺带回写，失败不影响读取。
func (s *attendanceService) reconcileStatus(ctx context.Context, task *model.AttendanceTask) {
	effective := task.EffectiveStatus(s.clock.Now())
	if effective == task.Status {
		return
	}
	if err := s.repo.Task.UpdateStatus(ctx, task.TaskID, effective); err != nil {
		s.logger.Warn("校准任务状态失败", zap.String("task_id", task.TaskID), zap.Error(err))
		return
	}
	task.Status = effective
}

// toTaskResponse 组装任务响应；includeSecret 控制是否暴露手势图案等教师侧字段
func (s *attendanceService) toTaskResponse(task *model.AttendanceTask, includeSecret bool) *dto.TaskResponse {
	resp := &dto.TaskResponse{
		ID:             task.TaskID,
		Title:          task.Title,
		CourseID:       task.CourseID,
		ClassID:        task.ClassID,
		TeacherID:      task.TeacherID,
		AttendanceType: task.AttendanceType,
		StartTime:      task.StartTime.Format(time.RFC3339),
		EndTime:        task.EndTime.Format(time.RFC3339),
		Status:         task.EffectiveStatus(s.clock.Now()),
		LocationName:   task.LocationName,
		LocationLat:    task.LocationLat,
		LocationLng:    task.LocationLng,
		LocationRadius: task.LocationRadius,
		CreatedAt:      task.CreatedAt.Format(time.RFC3339),
	}
	if task.Course != nil {
		resp.CourseName = task.Course.Name
	}
	if includeSecret {
		resp.GesturePattern = []int(task.GesturePattern)
		resp.FaceThreshold = task.FaceThreshold
	}
	return resp
}

func toRecordResponse(rec *model.AttendanceRecord) *dto.RecordResponse {
	resp := &dto.RecordResponse{
		ID:            rec.RecordID,
		TaskID:        rec.TaskID,
		StudentID:     rec.StudentID,
		Status:        rec.Status,
		CheckInMethod: rec.CheckInMethod,
		Distance:      rec.Distance,
		Similarity:    rec.Similarity,
		Remark:        rec.Remark,
	}
	if rec.CheckInTime != nil {
		t := rec.CheckInTime.Format(time.RFC3339)
		resp.CheckInTime = &t
	}
	if rec.Student != nil {
		resp.StudentName = rec.Student.Name
		resp.StudentNo = rec.Student.StudentNo
	}
	return resp
}

// [自证通过] internal/service/attendance_service.go
