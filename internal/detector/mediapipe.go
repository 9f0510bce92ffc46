package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// IdleTimeout is how long the Python service may sit without frames before it
// is shut down. It is restarted transparently on the next Detect.
const IdleTimeout = 30 * time.Second

// StartupTimeout bounds how long the service may take to load its model and
// report ready.
const StartupTimeout = 2 * time.Minute

// RestartBackoff is how long Detect refuses to respawn the service after it
// failed to start or died mid-frame.
const RestartBackoff = 2 * time.Second

var (
	// ErrScriptNotFound is returned when the MediaPipe service script cannot be located.
	ErrScriptNotFound = errors.New("mediapipe_service.py not found")

	// ErrServiceUnavailable is returned while the service is backing off after
	// a failure.
	ErrServiceUnavailable = errors.New("mediapipe service unavailable")
)

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Wire protocol: each frame is written to the child's stdin as a 4-byte
// big-endian length followed by a JPEG; the child answers with one JSON line.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	pythonPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	lastUsed   time.Time
	idleTimer  *time.Timer

	// lastErr and retryAt hold the most recent service failure.
	lastErr error
	retryAt time.Time
}

// NewMediaPipeDetector creates a new MediaPipe detector. The Python process
// is not started until Start or the first Detect. An empty scriptPath
// searches the usual install locations.
func NewMediaPipeDetector(config Config, scriptPath string) (*MediaPipeDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}

	if scriptPath == "" {
		scriptPath = findMediaPipeScript()
	} else if _, err := os.Stat(scriptPath); err != nil {
		scriptPath = ""
	}
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
		pythonPath: pythonPath,
	}, nil
}

// Start launches the service and waits for it to report that its model is
// loaded. Import or model errors in the child surface here.
func (d *MediaPipeDetector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return err
	}
	d.resetIdleTimer()
	return nil
}

// Detect analyzes a frame and returns detected hands.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, d.fail(fmt.Errorf("write length: %w", err))
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, d.fail(fmt.Errorf("write data: %w", err))
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, d.fail(fmt.Errorf("read response: %w", err))
	}

	hands, err := parseResponse(line)
	if err != nil {
		return nil, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return hands, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) args() []string {
	return []string{
		d.scriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--model-complexity", strconv.Itoa(d.config.ModelComplexity),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinDetectionConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConfidence, 'f', -1, 64),
	}
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}
	if d.lastErr != nil && time.Now().Before(d.retryAt) {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, d.lastErr)
	}

	if err := d.spawn(); err != nil {
		d.lastErr = err
		d.retryAt = time.Now().Add(RestartBackoff)
		return err
	}
	d.lastErr = nil
	return nil
}

func (d *MediaPipeDetector) spawn() error {
	d.cmd = exec.Command(d.pythonPath, d.args()...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Model download progress and tracebacks go straight to our stderr.
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		d.cmd = nil
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	if err := d.awaitReady(StartupTimeout); err != nil {
		if d.cmd.Process != nil {
			d.cmd.Process.Kill()
		}
		d.shutdown()
		return err
	}

	d.lastUsed = time.Now()
	return nil
}

// awaitReady reads the handshake line the service prints once its model is
// built.
func (d *MediaPipeDetector) awaitReady(timeout time.Duration) error {
	type reply struct {
		line []byte
		err  error
	}
	ch := make(chan reply, 1)
	reader := d.stdout
	go func() {
		line, err := reader.ReadBytes('\n')
		ch <- reply{line, err}
	}()

	var r reply
	select {
	case r = <-ch:
	case <-time.After(timeout):
		return fmt.Errorf("mediapipe service not ready after %v", timeout)
	}
	if r.err != nil {
		return fmt.Errorf("mediapipe service exited during startup: %w", r.err)
	}
	return parseHandshake(r.line)
}

// fail tears the service down after an I/O error and holds off restarts.
func (d *MediaPipeDetector) fail(err error) error {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
	d.lastErr = err
	d.retryAt = time.Now().Add(RestartBackoff)
	return err
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".handglow/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".handglow/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand is the per-hand JSON structure emitted by the Python service.
// Points may contain nulls for landmarks the model did not emit.
type jsonHand struct {
	Points     []*jsonPoint `json:"points"`
	Handedness string       `json:"handedness"`
	Score      float64      `json:"score"`
}

type jsonPoint struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility"`
}

func parseHandshake(line []byte) error {
	var handshake struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(line, &handshake); err != nil {
		return fmt.Errorf("parse handshake: %w", err)
	}
	if handshake.Error != "" {
		return fmt.Errorf("mediapipe service: %s", handshake.Error)
	}
	if !handshake.Ready {
		return errors.New("mediapipe service: unexpected handshake")
	}
	return nil
}

func parseResponse(line []byte) ([]Hand, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe service: %s", response.Error)
	}

	hands := make([]Hand, len(response.Hands))
	for i, h := range response.Hands {
		hands[i] = h.toHand()
	}
	return hands, nil
}

func (h jsonHand) toHand() Hand {
	hand := Hand{
		Handedness: ParseHandedness(h.Handedness),
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		p := h.Points[i]
		if p == nil {
			continue
		}
		hand.Landmarks[i] = &Landmark{X: p.X, Y: p.Y, Z: p.Z, Visibility: p.Visibility}
	}

	return hand
}
