package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"framestage/internal/audio"
	"framestage/internal/capture"
	"framestage/internal/clips"
	"framestage/internal/media"
	"framestage/internal/playback"
	"framestage/internal/readiness"
	"framestage/internal/storage"
	"framestage/internal/timeline"
)

const Version = "0.1.0"

type Handler struct {
	store       *timeline.Store
	scheduler   *playback.Scheduler
	registry    *clips.Registry
	planner     *audio.Planner
	metadata    *media.MetadataService
	readiness   *readiness.Registry
	session     *capture.Session
	frameClient *media.FrameClient
	logger      zerolog.Logger

	waiterMu sync.Mutex
	waiters  map[string]func() // segment id -> frame waiter deregistration

	scopeMu sync.Mutex
	scopes  map[string]*timeline.Scope // clip id -> local-time scope

	pendingMu  sync.Mutex
	pendingOps map[string]func() // token -> barrier finish
}

func NewHandler(
	store *timeline.Store,
	scheduler *playback.Scheduler,
	registry *clips.Registry,
	planner *audio.Planner,
	metadata *media.MetadataService,
	ready *readiness.Registry,
	session *capture.Session,
	frameClient *media.FrameClient,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		store:       store,
		scheduler:   scheduler,
		registry:    registry,
		planner:     planner,
		metadata:    metadata,
		readiness:   ready,
		session:     session,
		frameClient: frameClient,
		logger:      logger,
		waiters:     make(map[string]func()),
		scopes:      make(map[string]*timeline.Scope),
		pendingOps:  make(map[string]func()),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// Frame store: the two-function capture driver surface.

func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FrameResponse{Frame: int64(h.store.Get())})
}

func (h *Handler) SetFrame(w http.ResponseWriter, r *http.Request) {
	var req SetFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	committed := h.store.Set(req.Frame)
	writeJSON(w, http.StatusOK, FrameResponse{Frame: int64(committed)})
}

// Playback

func (h *Handler) playbackState() PlaybackStateResponse {
	return PlaybackStateResponse{
		State:     h.scheduler.State().String(),
		Frame:     int64(h.store.Get()),
		Committed: int64(h.scheduler.Committed()),
	}
}

func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Play()
	writeJSON(w, http.StatusOK, h.playbackState())
}

func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Pause()
	writeJSON(w, http.StatusOK, h.playbackState())
}

func (h *Handler) Step(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	if req.Delta >= 0 {
		h.scheduler.StepForward()
	} else {
		h.scheduler.StepBack()
	}
	writeJSON(w, http.StatusOK, h.playbackState())
}

func (h *Handler) Jump(w http.ResponseWriter, r *http.Request) {
	var req JumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	switch req.To {
	case "start":
		h.scheduler.JumpToStart()
	case "end":
		h.scheduler.JumpToEnd()
	default:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Jump target must be 'start' or 'end'")
		return
	}
	writeJSON(w, http.StatusOK, h.playbackState())
}

// ReportRendered is how the downstream renderer reports consumption;
// it is the consumer side of the scheduler's backpressure slot.
func (h *Handler) ReportRendered(w http.ResponseWriter, r *http.Request) {
	var req RenderedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	h.scheduler.ReportRendered(timeline.Frame(req.Frame))
	writeJSON(w, http.StatusOK, h.playbackState())
}

// Clips

// clipScope returns the clip's local-time scope, creating a live one
// on first sight. A stale live scope (the clip was re-entered at a new
// interval) is rebuilt; frozen scopes keep their snapshot.
func (h *Handler) clipScope(c clips.Clip) *timeline.Scope {
	h.scopeMu.Lock()
	defer h.scopeMu.Unlock()
	return h.scopeLocked(c)
}

func (h *Handler) scopeLocked(c clips.Clip) *timeline.Scope {
	sc, ok := h.scopes[c.ID]
	if !ok || (!sc.Frozen() && sc.Offset() != c.Start) {
		sc = h.store.RootScope().Child(c.Start)
		h.scopes[c.ID] = sc
	}
	return sc
}

func (h *Handler) GetClips(w http.ResponseWriter, r *http.Request) {
	frame := h.store.Get()
	snapshot := h.registry.Snapshot()
	lanes := clips.PackLanes(snapshot)

	views := make([]ClipView, 0, len(snapshot))
	for _, c := range snapshot {
		scope := h.clipScope(c)
		views = append(views, ClipView{
			Clip:       c,
			Lane:       lanes[c.ID],
			Hidden:     h.registry.Hidden(c.ID),
			Visible:    h.registry.EffectiveVisible(c.ID),
			Active:     h.registry.Active(c.ID, frame),
			LocalFrame: int64(scope.Frame()),
			Frozen:     scope.Frozen(),
		})
	}

	writeJSON(w, http.StatusOK, ClipsResponse{
		Frame: int64(frame),
		Clips: views,
	})
}

func (h *Handler) EnterClip(w http.ResponseWriter, r *http.Request) {
	var req EnterClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	id, ok := h.registry.Enter(req.ParentID, clips.Spec{
		MountID: req.MountID,
		Start:   timeline.Frame(req.Start),
		End:     timeline.Frame(req.End),
		Label:   req.Label,
		LaneID:  req.LaneID,
	})

	// An empty clamped span is not an error: the clip just
	// contributes nothing.
	writeJSON(w, http.StatusOK, EnterClipResponse{ID: id, Registered: ok})
}

func (h *Handler) EnterSerial(w http.ResponseWriter, r *http.Request) {
	var req SerialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	specs := make([]clips.Spec, len(req.Clips))
	for i, c := range req.Clips {
		specs[i] = clips.Spec{
			MountID: c.MountID,
			Start:   timeline.Frame(c.Start),
			End:     timeline.Frame(c.End),
			Label:   c.Label,
			LaneID:  c.LaneID,
		}
	}

	ids := h.registry.EnterSerial(req.ParentID, specs)
	writeJSON(w, http.StatusOK, SerialResponse{IDs: ids})
}

func (h *Handler) ExitClip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.registry.Exit(id)

	h.scopeMu.Lock()
	delete(h.scopes, id)
	h.scopeMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// SetHidden toggles a clip's own hidden flag. Hiding also freezes the
// clip's local clock at the current frame; unhiding resumes live time.
func (h *Handler) SetHidden(w http.ResponseWriter, r *http.Request) {
	var req SetHiddenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	h.registry.SetHidden(id, req.Hidden)

	if c, ok := h.registry.Get(id); ok {
		h.scopeMu.Lock()
		if req.Hidden {
			if sc := h.scopeLocked(c); !sc.Frozen() {
				h.scopes[id] = sc.Freeze()
			}
		} else {
			delete(h.scopes, id)
		}
		h.scopeMu.Unlock()
	}

	w.WriteHeader(http.StatusNoContent)
}

// Audio segments

func (h *Handler) GetSegments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SegmentsResponse{Segments: h.planner.Segments()})
}

func (h *Handler) RegisterSegment(w http.ResponseWriter, r *http.Request) {
	var req RegisterSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	if req.SourcePath == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "source_path is required")
		return
	}
	if !media.IsSupportedSource(req.SourcePath) {
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_SOURCE", "Source format is not supported")
		return
	}

	sourceDuration := timeline.Frame(0)
	if req.SourceDuration != nil {
		sourceDuration = timeline.Frame(*req.SourceDuration)
	} else {
		sourceDuration = h.metadata.Lookup(req.SourcePath).DurationFrames
	}

	seg, ok := h.planner.Register(audio.Registration{
		ID:             req.ID,
		SourcePath:     req.SourcePath,
		ClipID:         req.ClipID,
		SourceDuration: sourceDuration,
		TrimStart:      timeline.Frame(req.TrimStart),
		LocalStart:     timeline.Frame(req.LocalStart),
		Volume:         req.Volume,
		FadeIn:         timeline.Frame(req.FadeIn),
		FadeOut:        timeline.Frame(req.FadeOut),
		ShowWaveform:   req.ShowWaveform,
	})

	resp := RegisterSegmentResponse{Registered: ok}
	if ok {
		resp.Segment = &seg
		// Video-bearing sources gate capture on their own frame
		// being decoded, not just on generic quiescence.
		if h.frameClient != nil && media.HasVideoTrack(seg.SourcePath) {
			meta := h.metadata.Lookup(seg.SourcePath)
			dereg := h.readiness.RegisterFrameWaiter("video:"+seg.ID, h.videoFrameWaiter(seg, meta))
			h.waiterMu.Lock()
			h.waiters[seg.ID] = dereg
			h.waiterMu.Unlock()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// videoFrameWaiter answers "is frame N decoded and presented" for one
// video segment by pulling the frame through the decode client; a
// cache hit is the common case once a frame has been fetched.
func (h *Handler) videoFrameWaiter(seg audio.Segment, meta media.Metadata) readiness.FrameWaiter {
	return func(ctx context.Context, frame timeline.Frame) error {
		if frame < seg.ProjectStart || frame >= seg.ProjectStart+seg.Duration {
			return nil
		}
		if meta.Width <= 0 || meta.Height <= 0 {
			// Broken asset degraded to zero metadata; it cannot
			// hold up capture.
			return nil
		}
		source := frame - seg.ProjectStart + seg.SourceStart
		_, err := h.frameClient.Frame(ctx, seg.SourcePath, source, meta.Width, meta.Height)
		return err
	}
}

func (h *Handler) DeregisterSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.planner.Deregister(id)

	h.waiterMu.Lock()
	if dereg, ok := h.waiters[id]; ok {
		dereg()
		delete(h.waiters, id)
	}
	h.waiterMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// Readiness

// Ready blocks on the aggregate ready-check, bounded by the request
// context; the capture driver applies its own timeout by cancelling
// the request.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	frame := h.store.Get()
	if err := h.session.AwaitReady(r.Context(), frame); err != nil {
		h.logger.Warn().Err(err).Int64("frame", int64(frame)).Msg("readiness check aborted")
		writeJSON(w, http.StatusOK, ReadyResponse{Ready: false, Frame: int64(frame)})
		return
	}
	writeJSON(w, http.StatusOK, ReadyResponse{Ready: true, Frame: int64(frame)})
}

func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PendingResponse{Pending: h.readiness.Pending()})
}

// StartPending marks one unit of work pending in a readiness category
// on behalf of an out-of-process producer (GPU upload, text shaping).
// The returned token is redeemed when the work lands.
func (h *Handler) StartPending(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Category is required")
		return
	}

	finish := h.readiness.Barrier(category).Start()
	token := uuid.NewString()

	h.pendingMu.Lock()
	h.pendingOps[token] = finish
	h.pendingMu.Unlock()

	writeJSON(w, http.StatusCreated, PendingTokenResponse{Category: category, Token: token})
}

func (h *Handler) FinishPending(w http.ResponseWriter, r *http.Request) {
	var req FinishPendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	h.pendingMu.Lock()
	finish, ok := h.pendingOps[req.Token]
	delete(h.pendingOps, req.Token)
	h.pendingMu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "TOKEN_NOT_FOUND", "Unknown or already finished token")
		return
	}

	finish()
	w.WriteHeader(http.StatusNoContent)
}

// Sources

// InvalidateSource drops cached frames and metadata for a source whose
// file changed on disk; the next mount or fetch goes back to the
// decode service.
func (h *Handler) InvalidateSource(w http.ResponseWriter, r *http.Request) {
	var req InvalidateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}
	if req.SourcePath == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "source_path is required")
		return
	}

	h.metadata.Invalidate(req.SourcePath)
	if h.frameClient != nil {
		h.frameClient.InvalidateSource(req.SourcePath)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Capture jobs

func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	if req.EndFrame < req.StartFrame {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "end_frame must be >= start_frame")
		return
	}

	job, err := h.session.StartJob(capture.JobSpec{
		StartFrame: req.StartFrame,
		EndFrame:   req.EndFrame,
		FPS:        req.FPS,
		OutputPath: req.OutputPath,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to start capture job")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start capture job")
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

func (h *Handler) FinishJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	var req FinishJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	job, err := h.session.Job(jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("id", jobID).Msg("failed to get capture job")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get capture job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "Capture job not found")
		return
	}

	if err := h.session.FinishJob(jobID, req.Status); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetJobManifest returns the audio manifest snapshotted when the job
// started, the flat segment list the external mixer muxes from.
func (h *Handler) GetJobManifest(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.session.Job(jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("id", jobID).Msg("failed to get capture job")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get capture job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "Capture job not found")
		return
	}

	entries, err := h.session.Manifest(jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("id", jobID).Msg("failed to load audio manifest")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load audio manifest")
		return
	}
	if entries == nil {
		entries = []storage.ManifestEntry{}
	}

	writeJSON(w, http.StatusOK, ManifestResponse{JobID: jobID, Entries: entries})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.session.Jobs(20)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list capture jobs")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list capture jobs")
		return
	}

	if jobs == nil {
		jobs = []storage.CaptureJob{}
	}

	writeJSON(w, http.StatusOK, JobsResponse{Jobs: jobs})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
