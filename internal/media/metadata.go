package media

import (
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"framestage/internal/readiness"
	"framestage/internal/timeline"
)

// Metadata is a media source's native shape in project terms. A failed
// probe degrades to the zero Metadata rather than an error, so one
// broken asset never halts the rest of the composition.
type Metadata struct {
	DurationFrames timeline.Frame `json:"duration_frames"`
	FPS            float64        `json:"fps"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
}

// Prober resolves a source path to its native metadata.
type Prober interface {
	Probe(path string) (Metadata, error)
}

// MetadataService answers per-path metadata queries at mount time,
// caching results for the process lifetime so every mount after the
// first is a map lookup.
type MetadataService struct {
	prober Prober
	cache  *lru.Cache[string, Metadata]
	ready  *readiness.Registry
	logger zerolog.Logger
}

func NewMetadataService(prober Prober, cacheSize int, ready *readiness.Registry, logger zerolog.Logger) (*MetadataService, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	c, err := lru.New[string, Metadata](cacheSize)
	if err != nil {
		return nil, err
	}
	return &MetadataService{
		prober: prober,
		cache:  c,
		ready:  ready,
		logger: logger,
	}, nil
}

// Lookup returns the source's metadata, probing on first sight. The
// probe itself counts as pending readiness work. Probe failures are
// logged and cached as zero metadata.
func (s *MetadataService) Lookup(path string) Metadata {
	if meta, ok := s.cache.Get(path); ok {
		return meta
	}

	finish := s.ready.Barrier("metadata-probe").Start()
	meta, err := s.prober.Probe(path)
	finish()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("metadata probe failed, using zero metadata")
		meta = Metadata{}
	}

	s.cache.Add(path, meta)
	return meta
}

// Invalidate drops a path's cached metadata so the next mount
// re-probes the file.
func (s *MetadataService) Invalidate(path string) {
	s.cache.Remove(path)
}

// FFProbeProber shells out to ffprobe for duration, frame rate and
// dimensions.
type FFProbeProber struct {
	ffprobePath string
	logger      zerolog.Logger
}

func NewFFProbeProber(logger zerolog.Logger) *FFProbeProber {
	ffprobePath := "ffprobe"
	if path, err := exec.LookPath("ffprobe"); err == nil {
		ffprobePath = path
	}

	return &FFProbeProber{
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

func (p *FFProbeProber) IsAvailable() bool {
	_, err := exec.LookPath(p.ffprobePath)
	return err == nil
}

func (p *FFProbeProber) Probe(path string) (Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.Command(p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		p.logger.Debug().Err(err).Str("file", path).Msg("ffprobe failed")
		return Metadata{}, err
	}

	return parseProbeOutput(output)
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

func parseProbeOutput(output []byte) (Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return Metadata{}, err
	}

	var meta Metadata

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		meta.Width = stream.Width
		meta.Height = stream.Height
		meta.FPS = parseFrameRate(stream.RFrameRate)
		break
	}

	if probe.Format.Duration != "" && meta.FPS > 0 {
		if seconds, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			meta.DurationFrames = timeline.Sanitize(seconds * meta.FPS)
		}
	}

	return meta, nil
}

// parseFrameRate parses ffprobe's rational rate strings ("30000/1001").
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	if !found {
		if v, err := strconv.ParseFloat(rate, 64); err == nil {
			return v
		}
		return 0
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
