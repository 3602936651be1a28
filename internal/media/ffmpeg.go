package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg implements Opener on top of the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

func NewFFmpeg(ffmpegPath, ffprobePath string, logger *slog.Logger) *FFmpeg {
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Info{}, fmt.Errorf("ffprobe failed for %s: %w: %s", path, err, tail(stderr.String(), 256))
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Info{}, fmt.Errorf("cannot parse ffprobe output: %w", err)
	}

	info := Info{}
	info.DurationSec, _ = strconv.ParseFloat(out.Format.Duration, 64)
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width = s.Width
		info.Height = s.Height
		info.Codec = s.CodecName
		info.FrameRate = parseRational(s.RFrameRate)
		if info.FrameRate <= 0 {
			info.FrameRate = parseRational(s.AvgFrameRate)
		}
		break
	}
	if info.DurationSec <= 0 {
		return Info{}, fmt.Errorf("no duration in probe of %s", path)
	}
	return info, nil
}

// KeyframeBefore scans packet timestamps in a window before sec and
// returns the last keyframe at or before it.
func (f *FFmpeg) KeyframeBefore(ctx context.Context, path string, sec float64) (float64, error) {
	windowStart := sec - 15
	if windowStart < 0 {
		windowStart = 0
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "packet=pts_time,flags",
		"-of", "csv=p=0",
		"-read_intervals", fmt.Sprintf("%f%%%f", windowStart, sec+0.5),
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe keyframe scan failed: %w: %s", err, tail(stderr.String(), 256))
	}

	best := -1.0
	for _, line := range strings.Split(stdout.String(), "\n") {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) < 2 {
			continue
		}
		pts, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || !strings.Contains(fields[1], "K") {
			continue
		}
		if pts <= sec+1e-6 && pts > best {
			best = pts
		}
	}
	if best < 0 {
		// No keyframe in the window; treat the stream start as one.
		return 0, nil
	}
	return best, nil
}

func (f *FFmpeg) Open(ctx context.Context, path string) (Source, error) {
	info, err := f.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return &fileSource{ffmpeg: f, path: path, info: info}, nil
}

// fileSource extracts frames on demand with one ffmpeg invocation per
// frame. Seek is acknowledged by decoding the target frame, so a returned
// Seek guarantees the position is actually renderable.
type fileSource struct {
	ffmpeg *FFmpeg
	path   string
	info   Info
	pos    float64
	closed bool
}

func (s *fileSource) Info() Info {
	return s.info
}

func (s *fileSource) Seek(ctx context.Context, sec float64) (float64, error) {
	if s.closed {
		return 0, fmt.Errorf("%w: source closed", ErrSeek)
	}
	if sec < 0 {
		sec = 0
	}
	if sec > s.info.DurationSec {
		sec = s.info.DurationSec
	}
	if _, err := s.ExtractFrame(ctx, sec); err != nil {
		return 0, err
	}
	s.pos = sec
	return sec, nil
}

func (s *fileSource) ExtractFrame(ctx context.Context, sec float64) (*image.RGBA, error) {
	if s.closed {
		return nil, fmt.Errorf("%w: source closed", ErrSeek)
	}

	// -ss before -i is the fast keyframe seek; the accurate_seek default
	// then decodes forward to the exact requested frame.
	cmd := exec.CommandContext(ctx, s.ffmpeg.ffmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(sec, 'f', 6, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: frame extraction at %.3fs: %v: %s", ErrSeek, sec, err, tail(stderr.String(), 256))
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode extracted frame: %v", ErrSeek, err)
	}
	return toRGBA(img), nil
}

func (s *fileSource) Close() error {
	s.closed = true
	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

func parseRational(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 1 {
		v, _ := strconv.ParseFloat(parts[0], 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func tail(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[len(s)-maxLen:]
}
