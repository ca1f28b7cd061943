package out

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"reltone/internal/modules/pitch/domain"
	pitchout "reltone/internal/modules/pitch/port/out"
)

// FFmpegSourceOpener decodes any input ffmpeg understands (a file, or a capture
// device when InputFormat names one such as pulse or avfoundation) into mono
// float32 frames.
type FFmpegSourceOpener struct {
	Bin         string
	InputFormat string
	SampleRate  int
	FrameSize   int
	Now         func() time.Time
}

func NewFFmpegSourceOpener(bin, inputFormat string, sampleRate, frameSize int) *FFmpegSourceOpener {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegSourceOpener{Bin: bin, InputFormat: inputFormat, SampleRate: sampleRate, FrameSize: frameSize, Now: time.Now}
}

func (o *FFmpegSourceOpener) Args(input string) []string {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "error"}
	if o.InputFormat != "" {
		args = append(args, "-f", o.InputFormat)
	}
	return append(args,
		"-i", input,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(o.SampleRate),
		"-f", "f32le", "-",
	)
}

func (o *FFmpegSourceOpener) Open(ctx context.Context, input string) (pitchout.FrameSource, error) {
	if input == "" {
		return nil, fmt.Errorf("audio input is required")
	}
	if _, err := exec.LookPath(o.Bin); err != nil {
		return nil, fmt.Errorf("find ffmpeg: %w", err)
	}
	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, o.Bin, o.Args(input)...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}
	return &streamSource{
		reader:     bufio.NewReaderSize(stdout, o.FrameSize*4),
		frameSize:  o.FrameSize,
		sampleRate: o.SampleRate,
		now:        now,
		closeFn: func() error {
			cancel()
			err := cmd.Wait()
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}, nil
}

// streamSource reads little-endian float32 PCM. A short final read is padded
// with silence; the call after it returns io.EOF.
type streamSource struct {
	reader     io.Reader
	frameSize  int
	sampleRate int
	now        func() time.Time
	closeFn    func() error

	once sync.Once
	done bool
	buf  []byte
}

func (s *streamSource) Next(ctx context.Context) (domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return domain.Frame{}, err
	}
	if s.done {
		return domain.Frame{}, io.EOF
	}
	if s.buf == nil {
		s.buf = make([]byte, s.frameSize*4)
	}
	n, err := io.ReadFull(s.reader, s.buf)
	switch {
	case errors.Is(err, io.EOF):
		s.done = true
		return domain.Frame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
	case err != nil:
		return domain.Frame{}, fmt.Errorf("read pcm: %w", err)
	}
	samples := make([]float64, s.frameSize)
	for i := 0; i+4 <= n; i += 4 {
		samples[i/4] = float64(math.Float32frombits(binary.LittleEndian.Uint32(s.buf[i:])))
	}
	return domain.Frame{Samples: samples, SampleRate: s.sampleRate, Timestamp: s.now()}, nil
}

func (s *streamSource) Close() error {
	var err error
	s.once.Do(func() {
		if s.closeFn != nil {
			err = s.closeFn()
		}
	})
	return err
}
