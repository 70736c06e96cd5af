package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-api/internal/dto"
)

func TestPublishResultsReachStudents(t *testing.T) {
	env := setupApp(t)
	admin := env.client(t)
	admin.loginAdmin()
	classID := createClass(t, admin, "Class 10 B")
	topper, topperID := enrolledStudent(t, env, classID, "topper@example.com", "Top Per")
	_, runnerID := enrolledStudent(t, env, classID, "runner@example.com", "Run Ner")

	resp := admin.json(http.MethodPost, "/api/admin/results/publish", map[string]interface{}{
		"classId":    classID,
		"examName":   "Unit Test 1",
		"subject":    "Mathematics",
		"examDate":   "2026-10-01",
		"totalMarks": 100,
		"results": []map[string]interface{}{
			{"studentId": runnerID, "marks": 64},
			{"studentId": topperID, "marks": 93},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var publication dto.ResultPublicationResponse
	decodeData(t, resp, &publication)
	require.NotZero(t, publication.ID)

	resp = topper.get("/api/student/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var results []dto.StudentResultSummary
	decodeData(t, resp, &results)
	require.Len(t, results, 1)
	require.Equal(t, 1, results[0].Rank)
	require.Equal(t, "A+", results[0].Grade)

	resp = topper.get(fmt.Sprintf("/api/student/results/%d", publication.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail dto.StudentResultDetail
	decodeData(t, resp, &detail)
	require.NotNil(t, detail.Mine)
	require.Equal(t, topperID, detail.Mine.StudentID)

	resp = topper.get("/api/student/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var progress dto.ProgressResponse
	decodeData(t, resp, &progress)
	require.Equal(t, 1, progress.TestsPassed)
	require.GreaterOrEqual(t, progress.ExperiencePoints, 100)

	resp = topper.get("/api/student/notifications", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var notifications []dto.NotificationResponse
	decodeData(t, resp, &notifications)
	require.Len(t, notifications, 1)
	require.False(t, notifications[0].Read)

	resp = topper.json(http.MethodPatch, fmt.Sprintf("/api/student/notifications/%d/read", notifications[0].ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var read dto.NotificationResponse
	decodeData(t, resp, &read)
	require.True(t, read.Read)

	resp = admin.get(fmt.Sprintf("/api/admin/results?classId=%d", classID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing dto.ResultListResponse
	decodeData(t, resp, &listing)
	require.Len(t, listing.Items, 1)
}

func TestPublishResultsValidation(t *testing.T) {
	env := setupApp(t)
	admin := env.client(t)
	admin.loginAdmin()
	classID := createClass(t, admin, "Class 7")
	_, studentID := enrolledStudent(t, env, classID, "marks@example.com", "Mark Ed")

	resp := admin.json(http.MethodPost, "/api/admin/results/publish", map[string]interface{}{
		"classId":    classID,
		"examName":   "Unit Test 2",
		"subject":    "Science",
		"totalMarks": 50,
		"results":    []map[string]interface{}{{"studentId": studentID, "marks": 51}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = admin.json(http.MethodPost, "/api/admin/results/publish", map[string]interface{}{
		"classId":  classID,
		"examName": "Unit Test 2",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeData(t, resp, nil)
	require.Equal(t, "required", body.Details["subject"])
}

func TestAttendanceMarkAndReports(t *testing.T) {
	env := setupApp(t)
	admin := env.client(t)
	admin.loginAdmin()
	classID := createClass(t, admin, "Class 6")
	student, studentID := enrolledStudent(t, env, classID, "present@example.com", "Pre Sent")
	enrolledStudent(t, env, classID, "missing@example.com", "Miss Ing")

	resp := admin.json(http.MethodPost, "/api/admin/attendance/mark", map[string]interface{}{
		"studentId": studentID,
		"date":      "2026-10-14",
		"status":    "present",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = admin.get(fmt.Sprintf("/api/admin/attendance/class/%d/date/2026-10-14", classID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report dto.ClassAttendanceResponse
	decodeData(t, resp, &report)
	require.Len(t, report.Entries, 2)
	require.Equal(t, 1, report.Summary.Present)
	require.Equal(t, 1, report.Summary.Unmarked)

	resp = admin.get(fmt.Sprintf("/api/admin/attendance/class/%d/date/14-10-2026", classID), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = student.get("/api/student/attendance?from=2026-10-01&to=2026-10-31", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history dto.StudentAttendanceResponse
	decodeData(t, resp, &history)
	require.Len(t, history.Records, 1)
	require.Equal(t, 1, history.Summary.Present)

	resp = student.get("/api/student/attendance?from=2026-10-31&to=2026-10-01", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = student.get("/api/student/attendance?from=garbage", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeData(t, resp, nil)
	require.Equal(t, "date must use the YYYY-MM-DD format", body.Message)

	resp = admin.get(fmt.Sprintf("/api/admin/attendance/class/%d/date/not-a-date", classID), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = admin.json(http.MethodPost, "/api/admin/attendance/mark", map[string]interface{}{
		"studentId": studentID,
		"date":      "2026/10/14",
		"status":    "present",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAchievementsAndLeaderboard(t *testing.T) {
	env := setupApp(t)
	admin := env.client(t)
	admin.loginAdmin()
	student := env.client(t)
	studentID := student.registerStudent("badge@example.com", "Badge Holder")

	resp := admin.json(http.MethodPost, "/api/admin/achievements", map[string]interface{}{
		"code":     "early_bird",
		"name":     "Early Bird",
		"category": "engagement",
		"tier":     "bronze",
		"points":   15,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var achievement dto.AchievementResponse
	decodeData(t, resp, &achievement)

	path := fmt.Sprintf("/api/admin/students/%d/achievements/%d", studentID, achievement.ID)
	resp = admin.json(http.MethodPost, path, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var award dto.AwardAchievementResponse
	decodeData(t, resp, &award)
	require.True(t, award.Awarded)

	resp = admin.json(http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &award)
	require.False(t, award.Awarded)

	resp = student.get("/api/student/achievements", nil)
	var earned []dto.EarnedAchievementResponse
	decodeData(t, resp, &earned)
	require.Len(t, earned, 1)
	require.Equal(t, "early_bird", earned[0].Achievement.Code)

	resp = env.client(t).get("/api/achievements", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.client(t).get("/api/leaderboard?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var board []dto.LeaderboardEntryResponse
	decodeData(t, resp, &board)
	require.NotEmpty(t, board)
	require.Equal(t, studentID, board[0].StudentID)
}

func TestAdminNotificationsAndAuditLog(t *testing.T) {
	env := setupApp(t)
	admin := env.client(t)
	admin.loginAdmin()
	classID := createClass(t, admin, "Class 5")
	student, _ := enrolledStudent(t, env, classID, "reader@example.com", "Rea Der")

	resp := admin.json(http.MethodPost, "/api/admin/notifications", map[string]string{
		"audience": "all",
		"type":     "announcement",
		"title":    "Holiday",
		"message":  "<b>Closed</b> on Friday<script>alert(1)</script>",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = student.get("/api/student/notifications", nil)
	var notifications []dto.NotificationResponse
	decodeData(t, resp, &notifications)
	require.Len(t, notifications, 1)
	require.NotContains(t, notifications[0].Message, "<script>")

	resp = admin.get("/api/admin/activity?action=class.created", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs dto.AdminActivityListResponse
	decodeData(t, resp, &logs)
	require.Len(t, logs.Items, 1)
	require.Equal(t, "class", logs.Items[0].EntityType)

	resp = admin.get("/api/admin/activity?since=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = admin.get(fmt.Sprintf("/api/admin/students?classId=%d&search=rea", classID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var students dto.AdminStudentListResponse
	decodeData(t, resp, &students)
	require.Len(t, students.Items, 1)
}
