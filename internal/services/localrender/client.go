package localrender

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"reelforge/internal/render"
	"reelforge/internal/services"
)

const (
	placeholderAudio  = "{audio}"
	placeholderImage  = "{image}"
	placeholderOutput = "{output}"
	outputName        = "video.mp4"
	maxTailLines      = 20
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Config captures the local render command.
type Config struct {
	Command        string
	Args           []string
	ImagePath      string
	TimeoutSeconds int
	// WorkDir is the parent for per-run scratch directories. Defaults to the
	// system temp dir.
	WorkDir string
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client renders videos by shelling out to an external command that turns
// an audio file and a still image into a video file.
type Client struct {
	cfg     Config
	timeout time.Duration
	exec    Executor
}

// New constructs a local render client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.Command = strings.TrimSpace(cfg.Command)
	if cfg.Command == "" {
		return nil, services.Wrap(services.ErrConfiguration, "render", "local", "render command required", nil)
	}
	if len(cfg.Args) == 0 {
		cfg.Args = []string{placeholderAudio, placeholderImage, placeholderOutput}
	}
	client := &Client{
		cfg:     cfg,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the renderer in logs and health output.
func (c *Client) Name() string { return "local" }

// Binary returns the configured command for preflight checks.
func (c *Client) Binary() string { return c.cfg.Command }

// Render runs the command synchronously and returns the rendered bytes in a
// completed job.
func (c *Client) Render(ctx context.Context, req render.Request) (render.Job, error) {
	workDir, err := os.MkdirTemp(c.cfg.WorkDir, "reelforge-render-")
	if err != nil {
		return render.Job{}, fmt.Errorf("create render workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := strings.TrimSpace(req.AudioPath)
	if audioPath == "" {
		if len(req.Audio) == 0 {
			return render.Job{}, services.Wrap(services.ErrValidation, "render", "local", "audio required", nil)
		}
		audioPath = filepath.Join(workDir, "voice.mp3")
		if err := os.WriteFile(audioPath, req.Audio, 0o644); err != nil {
			return render.Job{}, fmt.Errorf("write render audio: %w", err)
		}
	}
	outputPath := filepath.Join(workDir, outputName)
	args := expandArgs(c.cfg.Args, audioPath, c.cfg.ImagePath, outputPath)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	tail := newTailBuffer(maxTailLines)
	if err := c.exec.Run(runCtx, c.cfg.Command, args, tail.add); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return render.Job{}, ctxErr
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return render.Job{}, services.Wrap(services.ErrTimeout, "render", "local", fmt.Sprintf("command exceeded %s", c.timeout), err)
		}
		return render.Job{}, services.Wrap(services.ErrExternalTool, "render", "local", tail.summary(), err)
	}

	video, err := os.ReadFile(outputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return render.Job{}, services.Wrap(services.ErrExternalTool, "render", "local", "command produced no output file", nil)
		}
		return render.Job{}, fmt.Errorf("read render output: %w", err)
	}
	if len(video) == 0 {
		return render.Job{}, services.Wrap(services.ErrExternalTool, "render", "local", "command produced an empty file", nil)
	}
	return render.Job{ID: req.RunID, State: render.StateCompleted, Video: video}, nil
}

func expandArgs(templates []string, audio, image, output string) []string {
	replacer := strings.NewReplacer(
		placeholderAudio, audio,
		placeholderImage, image,
		placeholderOutput, output,
	)
	args := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		args = append(args, replacer.Replace(tmpl))
	}
	return args
}

type tailBuffer struct {
	mu    sync.Mutex
	limit int
	lines []string
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *tailBuffer) summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == 0 {
		return "command failed"
	}
	return "command failed: " + t.lines[len(t.lines)-1]
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
