package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/framecull/framecull-agent/internal/media"
)

// FrameProcessor transforms one decoded frame on the re-encode path. The
// compositor's Stream.Process satisfies it.
type FrameProcessor func(*image.RGBA) *image.RGBA

// Encoder writes the trimmed range of a source file to dst.
type Encoder interface {
	// Passthrough copies the trimmed byte range without re-encoding.
	Passthrough(ctx context.Context, src, dst string, start, end float64) error
	// Reencode decodes the trimmed range, runs every frame through
	// process and encodes the result at highest quality.
	Reencode(ctx context.Context, src, dst string, start, end float64, process FrameProcessor) error
}

// FFmpegEncoder shells out to ffmpeg. The re-encode path runs two
// processes, a rawvideo decoder and an encoder, with the frame processor
// between them so the export shares the playback compositing path.
type FFmpegEncoder struct {
	ffmpegPath         string
	opener             media.Opener
	passthroughTimeout time.Duration
	encodeTimeout      time.Duration
	logger             *slog.Logger
}

func NewFFmpegEncoder(ffmpegPath string, opener media.Opener, passthroughTimeout, encodeTimeout time.Duration, logger *slog.Logger) *FFmpegEncoder {
	return &FFmpegEncoder{
		ffmpegPath:         ffmpegPath,
		opener:             opener,
		passthroughTimeout: passthroughTimeout,
		encodeTimeout:      encodeTimeout,
		logger:             logger,
	}
}

func (e *FFmpegEncoder) Passthrough(ctx context.Context, src, dst string, start, end float64) error {
	if e.passthroughTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.passthroughTimeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", ffSec(start), "-to", ffSec(end),
		"-i", src,
		"-map", "0",
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y", dst,
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Debug("passthrough copy", "src", src, "dst", dst, "start", start, "end", end)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg passthrough: %w: %s", err, tail(stderr.String(), 400))
	}
	return nil
}

func (e *FFmpegEncoder) Reencode(ctx context.Context, src, dst string, start, end float64, process FrameProcessor) error {
	if e.encodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.encodeTimeout)
		defer cancel()
	}

	info, err := e.opener.Probe(ctx, src)
	if err != nil {
		return fmt.Errorf("probe before re-encode: %w", err)
	}
	w, h := info.Width, info.Height
	if w <= 0 || h <= 0 {
		return fmt.Errorf("re-encode: no video dimensions for %s", src)
	}
	fps := info.FrameRate
	if fps <= 0 {
		fps = 30
	}

	decode := exec.CommandContext(ctx, e.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-ss", ffSec(start), "-to", ffSec(end),
		"-i", src,
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-",
	)
	var decodeErr bytes.Buffer
	decode.Stderr = &decodeErr
	frames, err := decode.StdoutPipe()
	if err != nil {
		return fmt.Errorf("decode stdout pipe: %w", err)
	}

	encode := exec.CommandContext(ctx, e.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", w, h),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "pipe:0",
		"-ss", ffSec(start), "-to", ffSec(end),
		"-i", src,
		"-map", "0:v:0", "-map", "1:a:0?",
		"-c:v", "libx264", "-preset", "slow", "-crf", "12", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "320k",
		"-y", dst,
	)
	var encodeErr bytes.Buffer
	encode.Stderr = &encodeErr
	sink, err := encode.StdinPipe()
	if err != nil {
		return fmt.Errorf("encode stdin pipe: %w", err)
	}

	if err := decode.Start(); err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}
	if err := encode.Start(); err != nil {
		decode.Process.Kill()
		decode.Wait()
		return fmt.Errorf("start encoder: %w", err)
	}

	e.logger.Debug("re-encode started", "src", src, "dst", dst, "start", start, "end", end, "size", fmt.Sprintf("%dx%d", w, h))

	pumpErr := pumpFrames(frames, sink, w, h, process)
	sink.Close()

	decodeWait := decode.Wait()
	encodeWait := encode.Wait()

	if pumpErr != nil {
		return fmt.Errorf("re-encode frame pump: %w", pumpErr)
	}
	if decodeWait != nil {
		return fmt.Errorf("ffmpeg decode: %w: %s", decodeWait, tail(decodeErr.String(), 400))
	}
	if encodeWait != nil {
		return fmt.Errorf("ffmpeg encode: %w: %s", encodeWait, tail(encodeErr.String(), 400))
	}
	return nil
}

// pumpFrames moves raw RGBA frames from the decoder to the encoder,
// applying process to each. The frame buffer is reused; process must
// not retain it.
func pumpFrames(frames io.Reader, sink io.Writer, w, h int, process FrameProcessor) error {
	frameSize := w * h * 4
	buf := make([]byte, frameSize)
	img := &image.RGBA{Pix: buf, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}

	for {
		_, err := io.ReadFull(frames, buf)
		if err == io.EOF {
			return nil
		}
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("truncated frame from decoder")
		}
		if err != nil {
			return err
		}

		out := img
		if process != nil {
			out = process(img)
		}
		if _, err := sink.Write(out.Pix); err != nil {
			return fmt.Errorf("write frame to encoder: %w", err)
		}
	}
}

func ffSec(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
