package whisperx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ProviderName identifies WhisperX in logs and failure reports.
const ProviderName = "whisperx"

// CommandRunner executes name with args and returns combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	commandRunner CommandRunner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg, commandRunner: runProcessGroup}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) *Service {
	if runner != nil {
		s.commandRunner = runner
	}
	return s
}

// Name implements the provider contract.
func (s *Service) Name() string { return ProviderName }

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

// Transcribe runs WhisperX on audioPath and returns the SRT it produced.
// WhisperX only writes SRT, so responseFormat values other than "srt" are
// rejected.
func (s *Service) Transcribe(ctx context.Context, audioPath, prompt, responseFormat string) (string, error) {
	if audioPath == "" {
		return "", errors.New("whisperx: audio path required")
	}
	if f := strings.TrimSpace(responseFormat); f != "" && f != OutputFormat {
		return "", &unsupportedFormatError{Format: f}
	}

	parent := s.cfg.WorkDir
	if parent == "" {
		parent = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("whisperx: ensure work dir: %w", err)
	}
	outputDir, err := os.MkdirTemp(parent, "whisperx-")
	if err != nil {
		return "", fmt.Errorf("whisperx: create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	args := s.buildArgs(audioPath, outputDir, prompt)
	if output, err := s.commandRunner(ctx, UVXCommand, args...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("whisperx: %w", ctxErr)
		}
		return "", fmt.Errorf("whisperx: %w: %s", err, strings.TrimSpace(string(output)))
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outputDir, baseName+".srt"))
	if err != nil {
		return "", fmt.Errorf("whisperx: read srt output: %w", err)
	}
	return string(data), nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, prompt string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if prompt = strings.TrimSpace(prompt); prompt != "" {
		args = append(args, "--initial_prompt", prompt)
	}
	if lang := strings.ToLower(strings.TrimSpace(s.cfg.Language)); len(lang) == 2 {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

type unsupportedFormatError struct {
	Format string
}

func (e *unsupportedFormatError) Error() string {
	return fmt.Sprintf("whisperx: unsupported response format %q", e.Format)
}

// Retryable reports false: the same request would fail again.
func (e *unsupportedFormatError) Retryable() bool { return false }

// runProcessGroup starts name in a new process group. When ctx ends the whole
// group receives SIGTERM, and Go kills the leader after TerminateGrace.
func runProcessGroup(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			return err
		}
		return nil
	}
	cmd.WaitDelay = TerminateGrace

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return cmd.CombinedOutput()
}
