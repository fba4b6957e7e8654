package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/internal/repository"
	"hr-attendance-bot/internal/testutil"
)

func newBackendController(t *testing.T, fake *testutil.FakeHR, userID, password string) *Controller {
	t.Helper()
	client := repository.NewHRRESTClient(fake.URL, 5*time.Second)
	session, err := client.Login(context.Background(), userID, password)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	api := client.ForSession(session)

	return NewController(ControllerDeps{
		Codes:       api,
		Submissions: api,
		Today:       api,
		Location: &fakeLocation{
			perm:    PermissionGranted,
			reading: &models.LocationReading{Latitude: 10.77, Longitude: 106.69, Address: "Ben Nghe, Ho Chi Minh City"},
		},
		Camera:    &fakeCamera{perm: PermissionGranted},
		AfterFunc: func(time.Duration, func()) {},
	}, Identity{UserID: session.UserID, Role: session.Role})
}

func TestFlowAgainstBackend(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeHR(t)
	fake.AddUser("42", "pw", models.RoleEmployee, "3")
	ctrl := newBackendController(t, fake, "42", "pw")

	if err := ctrl.Activate(ctx); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if v := ctrl.View(); !v.CanCheckIn || v.CanCheckOut {
		t.Fatalf("before check-in: CanCheckIn=%v CanCheckOut=%v", v.CanCheckIn, v.CanCheckOut)
	}

	if err := ctrl.RequestAction(ctx, models.ActionCheckIn); err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}
	if err := ctrl.SelectMethod(ctx, MethodQR); err != nil {
		t.Fatalf("SelectMethod() error = %v", err)
	}
	code := fake.IssuedCode("42", models.ActionCheckIn)
	payload := QRPayload{UserID: "42", Code: code, Action: models.ActionCheckIn}
	if _, err := ctrl.Scan(ctx, payload.String()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	v := ctrl.View()
	if v.State != StateIdle || !v.Snapshot.CheckedIn() || v.CanCheckIn || !v.CanCheckOut {
		t.Fatalf("after check-in: %+v", v)
	}
	recs := fake.Records("42")
	if len(recs) != 1 || recs[0].Address != "Ben Nghe, Ho Chi Minh City" {
		t.Errorf("backend records = %+v", recs)
	}
}

func TestFlowExpiredCodeAgainstBackend(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeHR(t)
	fake.AddUser("42", "pw", models.RoleEmployee, "3")
	ctrl := newBackendController(t, fake, "42", "pw")

	if err := ctrl.Activate(ctx); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if err := ctrl.RequestAction(ctx, models.ActionCheckIn); err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}
	if err := ctrl.SelectMethod(ctx, MethodCode); err != nil {
		t.Fatalf("SelectMethod() error = %v", err)
	}

	code := fake.IssuedCode("42", models.ActionCheckIn)
	fake.Advance(10 * time.Minute)

	if _, err := ctrl.EnterCode(ctx, code); !errors.Is(err, ErrCodeExpiredOrInvalid) {
		t.Fatalf("EnterCode() error = %v, want %v", err, ErrCodeExpiredOrInvalid)
	}
	if v := ctrl.View(); v.State != StateIdle || v.Action != "" {
		t.Errorf("after expiry: state %v action %q, want Idle with no pending action", v.State, v.Action)
	}
	if len(fake.Records("42")) != 0 {
		t.Errorf("expired code recorded attendance")
	}
}

func TestModificationAgainstBackend(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeHR(t)
	fake.AddUser("42", "pw", models.RoleEmployee, "3")
	fake.AddUser("7", "pw", models.RoleManager, "3")

	employee := newBackendController(t, fake, "42", "pw")
	if err := employee.Activate(ctx); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if err := employee.RequestAction(ctx, models.ActionCheckIn); err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}
	if err := employee.SelectMethod(ctx, MethodCode); err != nil {
		t.Fatalf("SelectMethod() error = %v", err)
	}
	if _, err := employee.EnterCode(ctx, fake.IssuedCode("42", models.ActionCheckIn)); err != nil {
		t.Fatalf("EnterCode() error = %v", err)
	}

	client := repository.NewHRRESTClient(fake.URL, 5*time.Second)
	empSession, err := client.Login(ctx, "42", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	empAPI := client.ForSession(empSession)
	mods := NewModificationService(empAPI, empAPI)

	today := time.Now().Format("2006-01-02")
	req, err := mods.Submit(ctx, "42", ModificationInput{Date: today, CheckIn: "08:00", CheckOut: "17:00", Reason: "Forgot to check out"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if req.ID == 0 || req.Status != "PENDING" {
		t.Fatalf("Submit() = %+v", req)
	}

	if err := mods.Decide(ctx, Identity{UserID: "42", Role: models.RoleEmployee}, req.ID, models.Decision{Approved: true}); !errors.Is(err, ErrNotApprover) {
		t.Errorf("employee Decide() error = %v, want %v", err, ErrNotApprover)
	}

	mgrSession, err := client.Login(ctx, "7", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	mgrAPI := client.ForSession(mgrSession)
	mgrMods := NewModificationService(mgrAPI, mgrAPI)
	manager := Identity{UserID: mgrSession.UserID, Role: mgrSession.Role}

	pending, err := mgrMods.Pending(ctx, manager, "3")
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != req.ID {
		t.Fatalf("Pending() = %+v", pending)
	}
	if err := mgrMods.Decide(ctx, manager, req.ID, models.Decision{Approved: false, Comment: "no proof"}); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	mine, err := mods.Mine(ctx, "42")
	if err != nil {
		t.Fatalf("Mine() error = %v", err)
	}
	if len(mine) != 1 || mine[0].Status != "REJECTED" || mine[0].ApprovalComment != "no proof" {
		t.Errorf("Mine() = %+v", mine)
	}
}
