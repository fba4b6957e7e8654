// Package testutil provides an in-process HR backend for end-to-end tests
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"hr-attendance-bot/internal/models"
)

const (
	isoMillis         = "2006-01-02T15:04:05.000Z"
	codePeriodSeconds = 60
	expiredCodeBody   = "Invalid or expired code"
)

var codeOpts = totp.ValidateOpts{
	Period:    codePeriodSeconds,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type fakeUser struct {
	id         string
	password   string
	role       models.Role
	department string
	secrets    map[models.ActionKind]string
}

type fakeModification struct {
	models.ModificationRequest
	department string
}

// FakeHR is a gin-backed stand-in for the HR backend. Codes are real TOTP
// codes and access tokens are real HS256 JWTs.
type FakeHR struct {
	*httptest.Server

	mu            sync.Mutex
	offset        time.Duration
	jwtSecret     []byte
	users         map[string]*fakeUser
	records       map[string][]*models.AttendanceRecord
	modifications []*fakeModification
	issued        map[string]string
	nextRecordID  int64
	nextModID     int64
	codeRequests  int
	submissions   int
	rejectWith    string
}

// Claims are the access token claims issued by the fake backend
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewFakeHR starts a fake backend that is closed when t ends
func NewFakeHR(t *testing.T) *FakeHR {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeHR{
		jwtSecret: []byte("fake-hr-secret"),
		users:     make(map[string]*fakeUser),
		records:   make(map[string][]*models.AttendanceRecord),
		issued:    make(map[string]string),
	}
	f.Server = httptest.NewServer(f.router())
	t.Cleanup(f.Server.Close)
	return f
}

// AddUser registers a user who can log in
func (f *FakeHR) AddUser(id, password string, role models.Role, department string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &fakeUser{
		id:         id,
		password:   password,
		role:       role,
		department: department,
		secrets:    make(map[models.ActionKind]string),
	}
}

// Advance moves the backend clock forward, e.g. past a code's lifetime
func (f *FakeHR) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offset += d
}

// IssuedCode returns the last code generated for the user and action
func (f *FakeHR) IssuedCode(userID string, action models.ActionKind) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issued[userID+"|"+string(action)]
}

// Token signs an access token for the user valid for ttl
func (f *FakeHR) Token(userID string, role models.Role, ttl time.Duration) string {
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.jwtSecret)
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return signed
}

// Records returns a copy of the user's attendance records
func (f *FakeHR) Records(userID string) []models.AttendanceRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AttendanceRecord, 0, len(f.records[userID]))
	for _, r := range f.records[userID] {
		out = append(out, *r)
	}
	return out
}

// Submissions counts check-in and check-out calls received
func (f *FakeHR) Submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submissions
}

// RejectSubmissions makes every later check-in or check-out fail with a 400
// carrying message as plain text. An empty message restores normal handling.
func (f *FakeHR) RejectSubmissions(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectWith = message
}

// CodeRequests counts generate-code calls received
func (f *FakeHR) CodeRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codeRequests
}

func (f *FakeHR) now() time.Time {
	return time.Now().Add(f.offset)
}

func (f *FakeHR) router() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.POST("/api/auth/login", f.login)

	att := r.Group("/api/attendance", f.authRequired())
	att.POST("/generate-code", f.generateCode)
	att.POST("/check-in", f.submit(models.ActionCheckIn))
	att.POST("/check-out", f.submit(models.ActionCheckOut))
	att.GET("/history", f.history)
	att.GET("/summary", f.summary)
	att.GET("/by-date", f.byDate)
	att.POST("/request-modification", f.requestModification)
	att.GET("/modification-requests", f.listModifications)

	mgr := att.Group("/manager", f.requireApprover())
	mgr.GET("/modification-requests/pending", f.pendingModifications)
	mgr.POST("/modification-requests/:id/approve", f.decideModification)

	return r
}

func (f *FakeHR) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}
		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(strings.TrimPrefix(h, "Bearer "), claims, func(token *jwt.Token) (any, error) {
			return f.jwtSecret, nil
		})
		if err != nil || !parsed.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func (f *FakeHR) requireApprover() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if !models.Role(fmt.Sprint(role)).CanApprove() {
			c.JSON(http.StatusForbidden, gin.H{"error": "manager only"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (f *FakeHR) login(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body"})
		return
	}

	f.mu.Lock()
	u, ok := f.users[req.Identifier]
	f.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if u.password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	uid, _ := strconv.Atoi(u.id)
	c.JSON(http.StatusOK, gin.H{
		"accessToken": f.Token(u.id, u.role, time.Hour),
		"tokenType":   "Bearer",
		"role":        u.role,
		"userId":      uid,
	})
}

func (f *FakeHR) generateCode(c *gin.Context) {
	userID := c.Query("userId")
	action := models.ActionKind(c.Query("type"))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeRequests++

	u, ok := f.users[userID]
	if !ok || !action.Valid() {
		c.String(http.StatusBadRequest, "Invalid user or type")
		return
	}
	secret, ok := u.secrets[action]
	if !ok {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: "fake-hr", AccountName: userID + "-" + string(action)})
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		secret = key.Secret()
		u.secrets[action] = secret
	}
	code, err := totp.GenerateCodeCustom(secret, f.now(), codeOpts)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	f.issued[userID+"|"+string(action)] = code
	c.String(http.StatusOK, code)
}

func (f *FakeHR) submit(action models.ActionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("userId")
		code := c.Query("code")
		lat, latErr := strconv.ParseFloat(c.Query("latitude"), 64)
		lon, lonErr := strconv.ParseFloat(c.Query("longitude"), 64)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.submissions++

		if f.rejectWith != "" {
			c.String(http.StatusBadRequest, f.rejectWith)
			return
		}
		if latErr != nil || lonErr != nil {
			c.String(http.StatusBadRequest, "Location is required")
			return
		}
		u, ok := f.users[userID]
		if !ok {
			c.String(http.StatusBadRequest, "Unknown user")
			return
		}
		secret := u.secrets[action]
		valid, err := totp.ValidateCustom(code, secret, f.now(), codeOpts)
		if secret == "" || err != nil || !valid {
			c.String(http.StatusBadRequest, expiredCodeBody)
			return
		}

		now := f.now()
		today := f.todayLocked(userID, now)
		switch action {
		case models.ActionCheckIn:
			if today != nil {
				c.String(http.StatusBadRequest, "Already checked in today")
				return
			}
			f.nextRecordID++
			today = &models.AttendanceRecord{
				ID:          f.nextRecordID,
				UserID:      userID,
				CheckInTime: &now,
				Status:      "PRESENT",
				Latitude:    &lat,
				Longitude:   &lon,
				Address:     c.Query("address"),
			}
			f.records[userID] = append(f.records[userID], today)
		case models.ActionCheckOut:
			if today == nil {
				c.String(http.StatusBadRequest, "Not checked in today")
				return
			}
			if today.CheckOutTime != nil {
				c.String(http.StatusBadRequest, "Already checked out today")
				return
			}
			today.CheckOutTime = &now
			today.WorkingHours = now.Sub(*today.CheckInTime).Hours()
		}
		c.JSON(http.StatusOK, today)
	}
}

func (f *FakeHR) todayLocked(userID string, now time.Time) *models.AttendanceRecord {
	y, m, d := now.Date()
	for _, r := range f.records[userID] {
		if r.CheckInTime == nil {
			continue
		}
		ry, rm, rd := r.CheckInTime.Date()
		if ry == y && rm == m && rd == d {
			return r
		}
	}
	return nil
}

func (f *FakeHR) inRangeLocked(userID string, from, to time.Time) []models.AttendanceRecord {
	var out []models.AttendanceRecord
	for _, r := range f.records[userID] {
		if r.CheckInTime == nil {
			continue
		}
		if !r.CheckInTime.Before(from) && r.CheckInTime.Before(to) {
			out = append(out, *r)
		}
	}
	return out
}

func parseRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, err1 := time.Parse(isoMillis, c.Query("startDate"))
	to, err2 := time.Parse(isoMillis, c.Query("endDate"))
	return from, to, err1 == nil && err2 == nil
}

func (f *FakeHR) history(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		c.String(http.StatusBadRequest, "Invalid date range")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	if size <= 0 {
		size = 10
	}

	f.mu.Lock()
	all := f.inRangeLocked(c.Query("userId"), from, to)
	f.mu.Unlock()

	start := page * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	c.JSON(http.StatusOK, all[start:end])
}

func (f *FakeHR) summary(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		c.String(http.StatusBadRequest, "Invalid date range")
		return
	}

	f.mu.Lock()
	all := f.inRangeLocked(c.Query("userId"), from, to)
	f.mu.Unlock()

	s := models.AttendanceSummary{TotalDays: len(all), PresentDays: len(all)}
	for _, r := range all {
		s.TotalWorkingHours += r.WorkingHours
	}
	if len(all) > 0 {
		s.AverageWorkingHours = s.TotalWorkingHours / float64(len(all))
	}
	c.JSON(http.StatusOK, s)
}

func (f *FakeHR) byDate(c *gin.Context) {
	day, err := time.ParseInLocation("2006-01-02", c.Query("date"), time.Local)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid date")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.inRangeLocked(c.Query("userId"), day, day.AddDate(0, 0, 1))
	if len(all) == 0 {
		c.String(http.StatusNotFound, "No attendance")
		return
	}
	c.JSON(http.StatusOK, all[0])
}

func (f *FakeHR) requestModification(c *gin.Context) {
	var req models.ModificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body"})
		return
	}
	req.UserID = c.Query("userId")

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[req.UserID]
	if !ok {
		c.String(http.StatusBadRequest, "Unknown user")
		return
	}
	f.nextModID++
	m := &fakeModification{ModificationRequest: req, department: u.department}
	m.ID = f.nextModID
	m.Status = "PENDING"
	m.RequestedCheckInTime = req.CheckInTime
	m.RequestedCheckOutTime = req.CheckOutTime
	m.RequestTime = f.now().Format("2006-01-02T15:04:05")
	f.modifications = append(f.modifications, m)
	c.JSON(http.StatusOK, modificationJSON(m))
}

func (f *FakeHR) listModifications(c *gin.Context) {
	userID := c.Query("userId")

	f.mu.Lock()
	defer f.mu.Unlock()
	out := []gin.H{}
	for _, m := range f.modifications {
		if m.UserID == userID {
			out = append(out, modificationJSON(m))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (f *FakeHR) pendingModifications(c *gin.Context) {
	dept := c.Query("departmentId")

	f.mu.Lock()
	defer f.mu.Unlock()
	out := []gin.H{}
	for _, m := range f.modifications {
		if m.department == dept && m.Status == "PENDING" {
			out = append(out, modificationJSON(m))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (f *FakeHR) decideModification(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid id")
		return
	}
	approved := c.Query("approved") == "true"

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.modifications {
		if m.ID != id {
			continue
		}
		if m.Status != "PENDING" {
			c.String(http.StatusBadRequest, "Request already decided")
			return
		}
		m.Approved = &approved
		m.ApprovalComment = c.Query("comment")
		if approved {
			m.Status = "APPROVED"
		} else {
			m.Status = "REJECTED"
		}
		c.JSON(http.StatusOK, modificationJSON(m))
		return
	}
	c.String(http.StatusNotFound, "Request not found")
}

func modificationJSON(m *fakeModification) gin.H {
	h := gin.H{
		"id":                    m.ID,
		"userId":                m.UserID,
		"status":                m.Status,
		"reason":                m.Reason,
		"requestTime":           m.RequestTime,
		"requestedCheckInTime":  m.RequestedCheckInTime,
		"requestedCheckOutTime": m.RequestedCheckOutTime,
		"approvalComment":       m.ApprovalComment,
		"attendance":            gin.H{"id": m.AttendanceID},
	}
	if m.Approved != nil {
		h["approved"] = *m.Approved
	}
	return h
}
