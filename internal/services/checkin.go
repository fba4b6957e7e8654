// Package services implements business logic for the application
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/internal/repository"
)

// CodeLength is the exact length of a manually entered or scanned code
const CodeLength = 6

// DefaultRearmDelay is how long scans are ignored after a scan attempt
const DefaultRearmDelay = 3 * time.Second

// State is the single state of a check-in/out flow
type State int

const (
	StateIdle State = iota
	StateAwaitingLocation
	StateCodeRequested
	StateMethodSelection
	StateScanning
	StateCodeEntry
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingLocation:
		return "AwaitingLocation"
	case StateCodeRequested:
		return "CodeRequested"
	case StateMethodSelection:
		return "MethodSelection"
	case StateScanning:
		return "Scanning"
	case StateCodeEntry:
		return "CodeEntry"
	case StateSubmitting:
		return "Submitting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Permission is the answer of a device capability
type Permission int

const (
	PermissionGranted Permission = iota
	PermissionDenied
	PermissionUnavailable
)

// LocationProvider supplies the device location
type LocationProvider interface {
	Permission(ctx context.Context) Permission
	// Current is only called after Permission returned PermissionGranted
	Current(ctx context.Context) (*models.LocationReading, error)
}

// CameraProvider gates the QR scanning method
type CameraProvider interface {
	Permission(ctx context.Context) Permission
}

// Method is the proof method picked after a code was issued
type Method string

const (
	MethodQR   Method = "QR"
	MethodCode Method = "CODE"
)

// Identity is the active session threaded into a controller
type Identity struct {
	UserID string
	Role   models.Role
}

// ControllerDeps are the collaborators of a Controller
type ControllerDeps struct {
	Codes       repository.CodeService
	Submissions repository.SubmissionService
	Today       repository.TodayRepository
	Location    LocationProvider
	Camera      CameraProvider
	// Geocoder fills the address of readings that have none. Optional.
	Geocoder repository.Geocoder

	RearmDelay time.Duration
	// MaxLocationAge blocks submission with an older reading. Zero disables the check.
	MaxLocationAge time.Duration
	// AfterFunc schedules the scan re-arm; defaults to time.AfterFunc
	AfterFunc func(d time.Duration, f func())
	Now       func() time.Time
}

// View is a consistent copy of the controller state for rendering
type View struct {
	State          State
	Identity       Identity
	Busy           bool
	LocationDenied bool
	Location       *models.LocationReading
	Snapshot       models.DaySnapshot
	Action         models.ActionKind
	CanCheckIn     bool
	CanCheckOut    bool
}

// Controller drives one user through code issuance, proof and submission.
// Remote calls run without the lock held; the busy flag rejects re-entry.
type Controller struct {
	deps     ControllerDeps
	identity Identity

	mu             sync.Mutex
	state          State
	busy           bool
	locationDenied bool
	location       *models.LocationReading
	snapshot       models.DaySnapshot
	pending        *models.PendingAction
	scanArmed      bool
}

// NewController creates a controller for the given identity
func NewController(deps ControllerDeps, identity Identity) *Controller {
	if deps.RearmDelay <= 0 {
		deps.RearmDelay = DefaultRearmDelay
	}
	if deps.AfterFunc == nil {
		deps.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{
		deps:      deps,
		identity:  identity,
		state:     StateIdle,
		scanArmed: true,
	}
}

// View returns the current state
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:          c.state,
		Identity:       c.identity,
		Busy:           c.busy,
		LocationDenied: c.locationDenied,
		Snapshot:       c.snapshot,
		CanCheckIn:     c.allowedLocked(models.ActionCheckIn),
		CanCheckOut:    c.allowedLocked(models.ActionCheckOut),
	}
	if c.location != nil {
		loc := *c.location
		v.Location = &loc
	}
	if c.pending != nil {
		v.Action = c.pending.Action
	}
	return v
}

// allowedLocked reports whether kind may be requested right now
func (c *Controller) allowedLocked(kind models.ActionKind) bool {
	if c.state != StateIdle || c.busy || c.locationDenied {
		return false
	}
	switch kind {
	case models.ActionCheckIn:
		return !c.snapshot.CheckedIn()
	case models.ActionCheckOut:
		return c.snapshot.CheckedIn() && !c.snapshot.CheckedOut()
	}
	return false
}

// Activate loads today's snapshot and the location reading
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.identity.UserID == "" {
		c.mu.Unlock()
		return ErrMissingUser
	}
	c.state = StateAwaitingLocation
	c.pending = nil
	c.mu.Unlock()

	snapErr := c.refreshSnapshot(ctx)
	locErr := c.RefreshLocation(ctx)
	return errors.Join(snapErr, locErr)
}

// RefreshLocation re-reads the location. A denial blocks every action until
// a later refresh succeeds.
func (c *Controller) RefreshLocation(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}

	switch c.deps.Location.Permission(ctx) {
	case PermissionDenied:
		c.locationDenied = true
		c.location = nil
		if c.state == StateAwaitingLocation {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return ErrLocationPermissionDenied
	case PermissionUnavailable:
		c.locationDenied = false
		c.location = nil
		if c.state == StateIdle {
			c.state = StateAwaitingLocation
		}
		c.mu.Unlock()
		return ErrLocationPending
	}

	c.busy = true
	c.mu.Unlock()

	reading, err := c.deps.Location.Current(ctx)
	if err == nil && reading != nil && reading.Address == "" && c.deps.Geocoder != nil {
		address, geoErr := c.deps.Geocoder.Reverse(ctx, reading.Latitude, reading.Longitude)
		if geoErr != nil {
			log.Printf("⚠️ Reverse geocoding failed: %v", geoErr)
			address = ""
		}
		reading.Address = address
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil || reading == nil {
		if c.state == StateIdle {
			c.state = StateAwaitingLocation
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
		}
		return ErrLocationUnavailable
	}

	c.locationDenied = false
	c.location = reading
	if c.state == StateAwaitingLocation {
		c.state = StateIdle
	}
	return nil
}

// refreshSnapshot replaces the day snapshot with the backend's answer
func (c *Controller) refreshSnapshot(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	return c.loadSnapshot(ctx)
}

// loadSnapshot is entered with busy set and without the lock; it clears busy
func (c *Controller) loadSnapshot(ctx context.Context) error {
	rec, err := c.deps.Today.GetToday(ctx, c.identity.UserID, c.deps.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotRefreshFailed, err)
	}
	c.snapshot = models.SnapshotFromRecord(rec)
	return nil
}

// RequestAction asks the backend for a code for kind and opens method selection
func (c *Controller) RequestAction(ctx context.Context, kind models.ActionKind) error {
	c.mu.Lock()
	switch {
	case c.busy:
		c.mu.Unlock()
		return ErrBusy
	case c.identity.UserID == "":
		c.mu.Unlock()
		return ErrMissingUser
	case !kind.Valid():
		c.mu.Unlock()
		return ErrInvalidAction
	case c.locationDenied:
		c.mu.Unlock()
		return ErrLocationPermissionDenied
	case c.state == StateAwaitingLocation:
		c.mu.Unlock()
		return ErrLocationPending
	case c.state != StateIdle:
		c.mu.Unlock()
		return ErrInvalidState
	case !c.allowedLocked(kind):
		c.mu.Unlock()
		return ErrActionNotAllowed
	}

	c.state = StateCodeRequested
	c.pending = &models.PendingAction{Action: kind}
	c.busy = true
	c.mu.Unlock()

	code, err := c.deps.Codes.GenerateCode(ctx, c.identity.UserID, kind)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err == nil && code == "" {
		err = errors.New("empty code")
	}
	if err != nil {
		log.Printf("❌ Code generation failed for user %s (%s): %v", c.identity.UserID, kind, err)
		c.state = StateIdle
		c.pending = nil
		return fmt.Errorf("%w: %w", ErrCodeGenerationFailed, err)
	}

	c.pending.IssuedCode = code
	c.state = StateMethodSelection
	log.Printf("🔑 Code issued for user %s (%s)", c.identity.UserID, kind)
	return nil
}

// SelectMethod opens the scanner or the code entry
func (c *Controller) SelectMethod(ctx context.Context, method Method) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return ErrBusy
	}
	if c.state != StateMethodSelection {
		return ErrInvalidState
	}

	switch method {
	case MethodQR:
		switch c.deps.Camera.Permission(ctx) {
		case PermissionGranted:
			c.state = StateScanning
			c.scanArmed = true
			return nil
		case PermissionDenied:
			return ErrCameraPermissionDenied
		default:
			return ErrCameraUnavailable
		}
	case MethodCode:
		c.state = StateCodeEntry
		return nil
	}
	return ErrInvalidMethod
}

// Scan handles a scanned QR payload. Scans are ignored for RearmDelay after
// each attempt.
func (c *Controller) Scan(ctx context.Context, raw string) (*models.AttendanceRecord, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.state != StateScanning {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	if !c.scanArmed {
		c.mu.Unlock()
		return nil, ErrScanDebounced
	}
	c.scanArmed = false
	c.deps.AfterFunc(c.deps.RearmDelay, c.rearmScan)

	payload, err := ParseQRPayload(raw)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if !payload.Matches(c.identity.UserID, c.pending.Action) {
		c.mu.Unlock()
		return nil, ErrQRIdentityMismatch
	}
	return c.submitLocked(ctx, payload.Code)
}

func (c *Controller) rearmScan() {
	c.mu.Lock()
	c.scanArmed = true
	c.mu.Unlock()
}

// EnterCode submits a manually typed code
func (c *Controller) EnterCode(ctx context.Context, code string) (*models.AttendanceRecord, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.state != StateCodeEntry {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	return c.submitLocked(ctx, code)
}

// submitLocked is entered with c.mu held and releases it
func (c *Controller) submitLocked(ctx context.Context, code string) (*models.AttendanceRecord, error) {
	if utf8.RuneCountInString(code) != CodeLength {
		c.mu.Unlock()
		return nil, ErrInvalidCodeLength
	}
	if c.locationDenied {
		c.mu.Unlock()
		return nil, ErrLocationPermissionDenied
	}
	if c.location == nil {
		c.mu.Unlock()
		return nil, ErrLocationUnavailable
	}
	if age := c.locationAgeLocked(); c.deps.MaxLocationAge > 0 && age > c.deps.MaxLocationAge {
		// the entry surface stays open; a fresh reading arrives through RefreshLocation
		c.location = nil
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: reading is %s old", ErrLocationUnavailable, age.Round(time.Second))
	}
	if c.pending == nil {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}

	origin := c.state
	action := c.pending.Action
	req := models.SubmitRequest{
		UserID:    c.identity.UserID,
		Code:      code,
		Latitude:  c.location.Latitude,
		Longitude: c.location.Longitude,
		Address:   c.location.Address,
	}
	c.state = StateSubmitting
	c.busy = true
	c.mu.Unlock()

	var (
		rec *models.AttendanceRecord
		err error
	)
	if action == models.ActionCheckIn {
		rec, err = c.deps.Submissions.CheckIn(ctx, req)
	} else {
		rec, err = c.deps.Submissions.CheckOut(ctx, req)
	}

	c.mu.Lock()
	if err != nil {
		defer c.mu.Unlock()
		c.busy = false
		if errors.Is(err, repository.ErrInvalidOrExpiredCode) {
			c.state = StateIdle
			c.pending = nil
			return nil, fmt.Errorf("%w: %w", ErrCodeExpiredOrInvalid, err)
		}
		c.state = origin
		log.Printf("❌ %s failed for user %s: %v", action, c.identity.UserID, err)
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	// busy stays set until the snapshot is reloaded
	c.state = StateIdle
	c.pending = nil
	c.mu.Unlock()

	log.Printf("✅ %s submitted for user %s", action, c.identity.UserID)

	if err := c.loadSnapshot(ctx); err != nil {
		return rec, err
	}
	return rec, nil
}

func (c *Controller) locationAgeLocked() time.Duration {
	if c.location == nil || c.location.ReadAt.IsZero() {
		return 0
	}
	return c.deps.Now().Sub(c.location.ReadAt)
}

// Cancel closes any open method selection, scanner or code entry
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return ErrBusy
	}
	switch c.state {
	case StateMethodSelection, StateScanning, StateCodeEntry:
		c.state = StateIdle
		c.pending = nil
	}
	return nil
}
