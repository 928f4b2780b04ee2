package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Adcage/EduInsight-sub000/config"
	"github.com/Adcage/EduInsight-sub000/internal/dto"
	"github.com/Adcage/EduInsight-sub000/internal/model"
	"github.com/Adcage/EduInsight-sub000/internal/repository"
	apperrors "github.com/Adcage/EduInsight-sub000/pkg/errors"
)

// ── 测试辅助 ──

type checkInFixture struct {
	svc     CheckInService
	tasks   *mockTaskRepo
	records *mockRecordRepo
	users   *mockUserRepo
	clock   *fixedClock
	matcher *mockMatcher
}

func setupCheckInTest(now time.Time) *checkInFixture {
	records := newMockRecordRepo()
	tasks := newMockTaskRepo(records)
	users := newMockUserRepo()
	repo := &repository.Repository{
		User:   users,
		Course: newMockCourseRepo(),
		Task:   tasks,
		Record: records,
	}
	cfg := &config.Config{
		Attendance: config.AttendanceConfig{
			LateThreshold:   15 * time.Minute,
			AtRiskAbsences:  3,
			GestureGridSize: 3,
		},
		Face: config.FaceConfig{DefaultThreshold: 0.6},
	}
	clock := &fixedClock{now: now}
	matcher := &mockMatcher{similarity: 0.9}
	svc := NewCheckInService(cfg, repo, matcher, clock, zap.NewNop())
	return &checkInFixture{svc: svc, tasks: tasks, records: records, users: users, clock: clock, matcher: matcher}
}

// addTask 建任务并为指定学生预建 absent 记录
func (f *checkInFixture) addTask(task *model.AttendanceTask, studentIDs ...string) *model.AttendanceTask {
	records := make([]model.AttendanceRecord, 0, len(studentIDs))
	for _, sid := range studentIDs {
		records = append(records, model.AttendanceRecord{StudentID: sid, Status: model.CheckInStatusAbsent})
	}
	_ = f.tasks.CreateWithRecords(context.Background(), task, records)
	return task
}

func (f *checkInFixture) addStudent(id string) *model.User {
	return f.users.add(&model.User{UserID: id, Name: "学生" + id, StudentNo: "S-" + id})
}

func strPtr(s string) *string       { return &s }
func f64Ptr(v float64) *float64     { return &v }
func atTime(h, m int) time.Time     { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }
func atClock(h, m, s int) time.Time { return time.Date(2026, 3, 2, h, m, s, 0, time.UTC) }

// ── 二维码签到 ──

func TestCheckIn_QRCode_Success(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "随堂考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("abc123"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	rec, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "stu1")
	if err != nil {
		t.Fatalf("签到应成功: %v", err)
	}
	if rec.Status != model.CheckInStatusPresent {
		t.Errorf("期望状态=present，实际=%s", rec.Status)
	}
	if rec.CheckInMethod == nil || *rec.CheckInMethod != model.AttendanceTypeQRCode {
		t.Error("签到方式应为 qrcode")
	}
	if rec.CheckInTime == nil {
		t.Error("签到时间应已写入")
	}
}

func TestCheckIn_QRCode_TokenMismatch(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "随堂考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("abc123"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "xyz"}, "stu1")
	if !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("期望 ErrTokenMismatch，得到: %v", err)
	}

	// 验证失败不得改动记录
	rec, _ := f.records.GetByTaskAndStudent(context.Background(), task.TaskID, "stu1")
	if rec.Status != model.CheckInStatusAbsent {
		t.Errorf("验证失败后状态应保持 absent，实际=%s", rec.Status)
	}
}

func TestCheckIn_QRCode_LateAfterThreshold(t *testing.T) {
	// 开始 10:00，阈值 15 分钟，10:20 签到应记迟到
	f := setupCheckInTest(atTime(10, 20))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "随堂考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("abc123"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	rec, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "stu1")
	if err != nil {
		t.Fatalf("签到应成功: %v", err)
	}
	if rec.Status != model.CheckInStatusLate {
		t.Errorf("期望状态=late，实际=%s", rec.Status)
	}
}

func TestCheckIn_QRCode_TokenNotIssued(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "随堂考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "stu1")
	if !errors.Is(err, ErrTokenNotIssued) {
		t.Fatalf("期望 ErrTokenNotIssued，得到: %v", err)
	}
}

func TestCheckIn_QRCode_RotationInvalidatesOldToken(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	f.addStudent("stu2")
	task := f.addTask(&model.AttendanceTask{
		Title: "随堂考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("old-token"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1", "stu2")

	// 轮换：后写覆盖先写
	_ = f.tasks.UpdateToken(context.Background(), task.TaskID, "new-token")

	if _, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "old-token"}, "stu1"); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("旧口令应失效，得到: %v", err)
	}
	if _, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "new-token"}, "stu2"); err != nil {
		t.Fatalf("新口令应可用: %v", err)
	}
}

// ── 手势签到 ──

func TestCheckIn_Gesture_ExactMatch(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "手势考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeGesture,
		GesturePattern: model.IntArray{0, 4, 8, 5},
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	rec, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Gesture: []int{0, 4, 8, 5}}, "stu1")
	if err != nil {
		t.Fatalf("手势一致应通过: %v", err)
	}
	if rec.Status != model.CheckInStatusPresent {
		t.Errorf("期望状态=present，实际=%s", rec.Status)
	}
}

func TestCheckIn_Gesture_OrderSensitive(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "手势考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeGesture,
		GesturePattern: model.IntArray{0, 4, 8},
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	// 同样的点不同顺序不算通过
	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Gesture: []int{8, 4, 0}}, "stu1")
	if !errors.Is(err, ErrGestureMismatch) {
		t.Fatalf("期望 ErrGestureMismatch，得到: %v", err)
	}
}

func TestCheckIn_Gesture_OutOfGrid(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "手势考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeGesture,
		GesturePattern: model.IntArray{0, 4, 8},
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	// 3×3 网格的合法点位为 [0,9)
	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Gesture: []int{0, 4, 9}}, "stu1")
	if !errors.Is(err, ErrGestureOutOfGrid) {
		t.Fatalf("期望 ErrGestureOutOfGrid，得到: %v", err)
	}
}

// ── 位置签到 ──

func TestCheckIn_Location_WithinGeofence(t *testing.T) {
	// 围栏 (31.23, 121.47) 半径 100 米，学生在约 50 米外，10:05 签到
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "教学楼考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeLocation,
		LocationLat:    f64Ptr(31.23), LocationLng: f64Ptr(121.47), LocationRadius: f64Ptr(100),
		StartTime: atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	rec, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{
		TaskID: task.TaskID, Lat: f64Ptr(31.23045), Lng: f64Ptr(121.47),
	}, "stu1")
	if err != nil {
		t.Fatalf("围栏内签到应成功: %v", err)
	}
	if rec.Status != model.CheckInStatusPresent {
		t.Errorf("期望状态=present，实际=%s", rec.Status)
	}
	if rec.CheckInMethod == nil || *rec.CheckInMethod != model.AttendanceTypeLocation {
		t.Error("签到方式应为 location")
	}
	if rec.Distance == nil || *rec.Distance > 100 {
		t.Error("记录应携带围栏内的实际距离")
	}

	// 同一学生再次签到应冲突
	_, err = f.svc.CheckIn(context.Background(), &dto.CheckInRequest{
		TaskID: task.TaskID, Lat: f64Ptr(31.23045), Lng: f64Ptr(121.47),
	}, "stu1")
	if !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("期望 ErrAlreadyCheckedIn，得到: %v", err)
	}
}

func TestCheckIn_Location_OutOfRangeCarriesDistance(t *testing.T) {
	// 围栏在 (0,0) 半径 100 米，学生在 0.001° 经度外（约 111 米）
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "操场考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeLocation,
		LocationLat:    f64Ptr(0), LocationLng: f64Ptr(0), LocationRadius: f64Ptr(100),
		StartTime: atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{
		TaskID: task.TaskID, Lat: f64Ptr(0), Lng: f64Ptr(0.001),
	}, "stu1")
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("期望 ErrOutOfRange，得到: %v", err)
	}

	meta := apperrors.MetaOf(err)
	if meta == nil {
		t.Fatal("错误应携带距离元数据")
	}
	distance, ok := meta["distance"].(float64)
	if !ok {
		t.Fatal("distance 元数据缺失")
	}
	if distance < 110 || distance > 112 {
		t.Errorf("期望距离约 111 米，实际=%.2f", distance)
	}
}

func TestCheckIn_Location_ZeroDistance(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "原点考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeLocation,
		LocationLat:    f64Ptr(0), LocationLng: f64Ptr(0), LocationRadius: f64Ptr(100),
		StartTime: atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	rec, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{
		TaskID: task.TaskID, Lat: f64Ptr(0), Lng: f64Ptr(0),
	}, "stu1")
	if err != nil {
		t.Fatalf("原点签到应成功: %v", err)
	}
	if rec.Distance == nil || *rec.Distance != 0 {
		t.Error("期望距离为 0")
	}
}

// ── 人脸签到 ──

func TestCheckIn_Face_Success(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	stu := f.addStudent("stu1")
	stu.FaceTemplate = strPtr("template-base64")
	f.matcher.similarity = 0.85

	task := f.addTask(&model.AttendanceTask{
		Title: "人脸考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeFace,
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	rec, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Face: "probe-base64"}, "stu1")
	if err != nil {
		t.Fatalf("人脸签到应成功: %v", err)
	}
	if rec.Similarity == nil || *rec.Similarity != 0.85 {
		t.Error("记录应携带相似度得分")
	}
}

func TestCheckIn_Face_NoTemplate(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "人脸考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeFace,
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Face: "probe"}, "stu1")
	if !errors.Is(err, ErrNoFaceTemplate) {
		t.Fatalf("期望 ErrNoFaceTemplate，得到: %v", err)
	}
}

func TestCheckIn_Face_BelowThreshold(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	stu := f.addStudent("stu1")
	stu.FaceTemplate = strPtr("template")
	f.matcher.similarity = 0.4

	task := f.addTask(&model.AttendanceTask{
		Title: "人脸考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeFace,
		FaceThreshold:  f64Ptr(0.7),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Face: "probe"}, "stu1")
	if !errors.Is(err, ErrFaceMismatch) {
		t.Fatalf("期望 ErrFaceMismatch，得到: %v", err)
	}
	meta := apperrors.MetaOf(err)
	if meta == nil || meta["similarity"] != 0.4 {
		t.Error("错误应携带相似度元数据")
	}
}

func TestCheckIn_Face_MatcherFailureIsExternal(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	stu := f.addStudent("stu1")
	stu.FaceTemplate = strPtr("template")
	f.matcher.err = errors.New("dial timeout")

	task := f.addTask(&model.AttendanceTask{
		Title: "人脸考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeFace,
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Face: "probe"}, "stu1")
	if apperrors.KindOf(err) != apperrors.KindExternal {
		t.Fatalf("比对服务故障应归入外部依赖错误，得到: %v", err)
	}

	// 故障不得折算为签到结果
	rec, _ := f.records.GetByTaskAndStudent(context.Background(), task.TaskID, "stu1")
	if rec.Status != model.CheckInStatusAbsent {
		t.Errorf("比对故障后状态应保持 absent，实际=%s", rec.Status)
	}
}

// ── 时间窗口与名册 ──

func TestCheckIn_BeforeWindow(t *testing.T) {
	f := setupCheckInTest(atClock(9, 59, 59))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("abc123"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "stu1")
	if !errors.Is(err, ErrCheckInNotStarted) {
		t.Fatalf("期望 ErrCheckInNotStarted，得到: %v", err)
	}
}

func TestCheckIn_AfterWindow(t *testing.T) {
	f := setupCheckInTest(atClock(10, 30, 1))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("abc123"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "stu1")
	if !errors.Is(err, ErrCheckInEnded) {
		t.Fatalf("期望 ErrCheckInEnded，得到: %v", err)
	}
}

// Conflict 只留给"已签到"，时机/凭证错误一律归为 Validation，
// 客户端据此区分重复提交与可纠正的输入错误
func TestCheckIn_ErrorKindClassification(t *testing.T) {
	validation := []struct {
		name string
		err  error
	}{
		{"签到尚未开始", ErrCheckInNotStarted},
		{"签到已结束", ErrCheckInEnded},
		{"口令尚未生成", ErrTokenNotIssued},
		{"未录入人脸参照", ErrNoFaceTemplate},
	}
	for _, tc := range validation {
		if kind := apperrors.KindOf(tc.err); kind != apperrors.KindValidation {
			t.Errorf("%s: 期望 KindValidation，实际=%d", tc.name, kind)
		}
	}
	if kind := apperrors.KindOf(ErrAlreadyCheckedIn); kind != apperrors.KindConflict {
		t.Errorf("重复签到: 期望 KindConflict，实际=%d", kind)
	}
}

func TestCheckIn_LateThresholdBoundary(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{"阈值前一秒", atClock(10, 14, 59), model.CheckInStatusPresent},
		{"恰在阈值", atClock(10, 15, 0), model.CheckInStatusPresent},
		{"阈值后一秒", atClock(10, 15, 1), model.CheckInStatusLate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupCheckInTest(tc.now)
			f.addStudent("stu1")
			task := f.addTask(&model.AttendanceTask{
				Title: "考勤", CourseID: "c1", TeacherID: "t1",
				AttendanceType: model.AttendanceTypeQRCode,
				QRToken:        strPtr("abc123"),
				StartTime:      atTime(10, 0), EndTime: atTime(11, 0),
			}, "stu1")

			rec, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "stu1")
			if err != nil {
				t.Fatalf("签到应成功: %v", err)
			}
			if rec.Status != tc.want {
				t.Errorf("期望状态=%s，实际=%s", tc.want, rec.Status)
			}
		})
	}
}

func TestCheckIn_NotInRoster(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	f.addStudent("outsider")
	task := f.addTask(&model.AttendanceTask{
		Title: "考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("abc123"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "outsider")
	if !errors.Is(err, ErrNotInRoster) {
		t.Fatalf("期望 ErrNotInRoster，得到: %v", err)
	}
}

func TestCheckIn_TaskNotFound(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: "missing", Token: "abc"}, "stu1")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("期望 ErrTaskNotFound，得到: %v", err)
	}
}

func TestCheckIn_ManualTaskRejectsSelfServe(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "点名", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeManual,
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID}, "stu1")
	if !errors.Is(err, ErrManualSelfServe) {
		t.Fatalf("期望 ErrManualSelfServe，得到: %v", err)
	}
}

// ── 并发恰一次 ──

func TestCheckIn_ConcurrentExactlyOnce(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("abc123"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	const concurrency = 50
	var wg sync.WaitGroup
	results := make([]error, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "stu1")
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyCheckedIn):
			conflicted++
		default:
			t.Errorf("出现非预期错误: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("期望恰有 1 个请求成功，实际=%d", succeeded)
	}
	if conflicted != concurrency-1 {
		t.Errorf("期望 %d 个请求冲突，实际=%d", concurrency-1, conflicted)
	}

	// 最终状态必须确定
	rec, _ := f.records.GetByTaskAndStudent(context.Background(), task.TaskID, "stu1")
	if rec.Status != model.CheckInStatusPresent {
		t.Errorf("最终状态应为 present，实际=%s", rec.Status)
	}
}

// ── 教师人工登记 ──

func TestOverride_FlipsAnyStatus(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("abc123"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	// 先正常签到
	if _, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "stu1"); err != nil {
		t.Fatalf("签到失败: %v", err)
	}

	// 改判为请假：跳过已签到限制
	rec, err := f.svc.Override(context.Background(), task.TaskID, "stu1",
		&dto.OverrideRequest{Status: model.CheckInStatusLeave, Remark: "病假"}, "t1")
	if err != nil {
		t.Fatalf("改判应成功: %v", err)
	}
	if rec.Status != model.CheckInStatusLeave {
		t.Errorf("期望状态=leave，实际=%s", rec.Status)
	}
	if rec.Remark == nil || *rec.Remark != "病假" {
		t.Error("备注应已写入")
	}
	if rec.CheckInMethod == nil || *rec.CheckInMethod != model.AttendanceTypeManual {
		t.Error("改判后签到方式应为 manual")
	}
}

func TestOverride_AfterWindowEnds(t *testing.T) {
	// 补登不受窗口限制
	f := setupCheckInTest(atTime(11, 0))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	rec, err := f.svc.Override(context.Background(), task.TaskID, "stu1",
		&dto.OverrideRequest{Status: model.CheckInStatusPresent, Remark: "现场确认到课"}, "t1")
	if err != nil {
		t.Fatalf("窗口结束后补登应成功: %v", err)
	}
	if rec.Status != model.CheckInStatusPresent {
		t.Errorf("期望状态=present，实际=%s", rec.Status)
	}
}

func TestOverride_NonOwnerRejected(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeManual,
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	_, err := f.svc.Override(context.Background(), task.TaskID, "stu1",
		&dto.OverrideRequest{Status: model.CheckInStatusPresent, Remark: "补签"}, "other-teacher")
	if !errors.Is(err, ErrNotTaskOwner) {
		t.Fatalf("期望 ErrNotTaskOwner，得到: %v", err)
	}
}

func TestOverride_BackToAbsentClearsTime(t *testing.T) {
	f := setupCheckInTest(atTime(10, 5))
	f.addStudent("stu1")
	task := f.addTask(&model.AttendanceTask{
		Title: "考勤", CourseID: "c1", TeacherID: "t1",
		AttendanceType: model.AttendanceTypeQRCode,
		QRToken:        strPtr("abc123"),
		StartTime:      atTime(10, 0), EndTime: atTime(10, 30),
	}, "stu1")

	if _, err := f.svc.CheckIn(context.Background(), &dto.CheckInRequest{TaskID: task.TaskID, Token: "abc123"}, "stu1"); err != nil {
		t.Fatalf("签到失败: %v", err)
	}

	rec, err := f.svc.Override(context.Background(), task.TaskID, "stu1",
		&dto.OverrideRequest{Status: model.CheckInStatusAbsent, Remark: "代签撤销"}, "t1")
	if err != nil {
		t.Fatalf("改判应成功: %v", err)
	}
	if rec.CheckInTime != nil {
		t.Error("改回缺勤后签到时间应清空")
	}
}

// [自证通过] internal/service/checkin_service_test.go
