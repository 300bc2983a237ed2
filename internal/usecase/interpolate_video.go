package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
	"github.com/framewise/rife-interpolation-service/internal/domain/port"
	"github.com/framewise/rife-interpolation-service/internal/infra/frames"
	"github.com/framewise/rife-interpolation-service/internal/infra/metrics"
	"github.com/framewise/rife-interpolation-service/internal/infra/quality"
	"github.com/framewise/rife-interpolation-service/internal/scheduler"
)

type InterpolateVideoUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	extractor port.FrameExtractor
	assembler port.VideoAssembler
	interp    port.Interpolator
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       InterpolateVideoConfig
}

type InterpolateVideoConfig struct {
	TempDir      string
	MaxRetries   int
	FrameWorkers int

	// Multiplier and Divisor are the service defaults; a request message
	// may override them per job.
	Multiplier int
	Divisor    int

	Lanes            int
	SceneChangeSkip  bool
	SceneThreshold   float64
	QualitySkip      bool
	QualityThreshold float64
}

func NewInterpolateVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	extractor port.FrameExtractor,
	assembler port.VideoAssembler,
	interp port.Interpolator,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg InterpolateVideoConfig,
) *InterpolateVideoUseCase {
	return &InterpolateVideoUseCase{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		assembler: assembler,
		interp:    interp,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

func (uc *InterpolateVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "InterpolateVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.InterpolationRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	multiplier, divisor := uc.cfg.Multiplier, uc.cfg.Divisor
	if msg.Multiplier > 0 {
		multiplier = msg.Multiplier
	}
	if msg.Divisor > 0 {
		divisor = msg.Divisor
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
		attribute.Int("job.multiplier", multiplier),
		attribute.Int("job.divisor", divisor),
	)

	log := uc.logger.With(
		zap.String("job_id", msg.JobID.String()),
		zap.String("video_key", msg.VideoKey),
		zap.Int("multiplier", multiplier),
		zap.Int("divisor", divisor),
	)

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewJob(msg.UserID, msg.VideoKey, msg.FileSize, multiplier, divisor, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.interpolationPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *InterpolateVideoUseCase) interpolationPipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.InterpolationRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video from MinIO
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Extract source frames with FFmpeg
	exStart := time.Now()
	ctx3, spanEx := tracer.Start(ctx, "extract_frames")
	framesDir := filepath.Join(workDir, "source")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		spanEx.End()
		return fmt.Errorf("create frames dir: %w", err)
	}
	extracted, err := uc.extractor.ExtractFrames(ctx3, videoPath, framesDir)
	if err != nil {
		spanEx.End()
		log.Error("frame extraction failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "extract_frames: "+err.Error(), log)
	}
	spanEx.End()
	metrics.JobProcessingDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())

	sched, err := uc.buildScheduler(job, extracted)
	if err != nil {
		// Construction failures are configuration errors; retrying the
		// same message cannot fix them.
		log.Error("scheduler rejected job configuration", zap.Error(err))
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "configure: "+err.Error())
	}

	// Produce the converted frame sequence
	itStart := time.Now()
	ctx4, spanIt := tracer.Start(ctx, "interpolate_frames")
	outDir := filepath.Join(workDir, "output")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		spanIt.End()
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := uc.produceFrames(ctx4, sched, outDir); err != nil {
		spanIt.End()
		log.Error("frame production failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "interpolate_frames: "+err.Error(), log)
	}
	spanIt.End()
	metrics.JobProcessingDuration.WithLabelValues("interpolate").Observe(time.Since(itStart).Seconds())

	// Encode the output video at the converted frame rate
	asStart := time.Now()
	ctx5, spanAs := tracer.Start(ctx, "assemble_video")
	outputPath := filepath.Join(workDir, "output.mp4")
	outputRate := sched.Rate().RescaleRate(sourceRate(extracted))
	if err := uc.assembler.Assemble(ctx5, filepath.Join(outDir, "frame_%06d.png"), &outputRate, outputPath); err != nil {
		spanAs.End()
		log.Error("video assembly failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "assemble_video: "+err.Error(), log)
	}
	spanAs.End()
	metrics.JobProcessingDuration.WithLabelValues("assemble").Observe(time.Since(asStart).Seconds())

	// Upload result to MinIO
	upStart := time.Now()
	ctx6, spanUp := tracer.Start(ctx, "upload_result")
	outputKey := fmt.Sprintf("%s/interpolated_%s.mp4", msg.UserID, job.ID.String())
	outFile, err := os.Open(outputPath)
	if err != nil {
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "open_result: "+err.Error(), log)
	}
	outStat, _ := outFile.Stat()
	if err := uc.storage.UploadResult(ctx6, outputKey, outFile, outStat.Size()); err != nil {
		outFile.Close()
		spanUp.End()
		log.Error("result upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_result: "+err.Error(), log)
	}
	outFile.Close()
	spanUp.End()
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	stats := sched.Stats()
	job.MarkCompleted(entity.JobResult{
		OutputKey:          outputKey,
		SourceFrames:       extracted.FrameCount,
		OutputFrames:       sched.OutputFrames(),
		InterpolatedFrames: int(stats.Interpolated),
		SkippedFrames:      int(stats.Skipped),
	})
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("source_frames", extracted.FrameCount),
		zap.Int("output_frames", sched.OutputFrames()),
		zap.Uint64("interpolated", stats.Interpolated),
		zap.Uint64("passthrough", stats.Passthrough),
		zap.Uint64("skipped", stats.Skipped),
		zap.String("output_key", outputKey),
	)

	return nil
}

func (uc *InterpolateVideoUseCase) buildScheduler(job *entity.Job, extracted *port.FrameExtractionResult) (*scheduler.Scheduler, error) {
	var frameDuration *entity.Rational
	if fr := extracted.FrameRate; fr != nil {
		frameDuration = &entity.Rational{Num: fr.Den, Den: fr.Num}
	}

	source, err := frames.NewSource(frames.SourceConfig{
		FramePaths:     extracted.FramePaths,
		FrameDuration:  frameDuration,
		SceneDetect:    uc.cfg.SceneChangeSkip,
		SceneThreshold: uc.cfg.SceneThreshold,
	})
	if err != nil {
		return nil, err
	}

	var analyzer port.QualityAnalyzer
	if uc.cfg.QualitySkip {
		qa, err := quality.NewAnalyzer(extracted.FramePaths)
		if err != nil {
			return nil, err
		}
		analyzer = qa
	}

	return scheduler.New(scheduler.Config{
		Multiplier:       job.Multiplier,
		Divisor:          job.Divisor,
		Lanes:            uc.cfg.Lanes,
		SceneChangeSkip:  uc.cfg.SceneChangeSkip,
		QualitySkip:      uc.cfg.QualitySkip,
		QualityThreshold: uc.cfg.QualityThreshold,
	}, source, analyzer, uc.interp, uc.logger)
}

// produceFrames writes every output frame to outDir as a numbered PNG.
// Production is parallel up to FrameWorkers; the scheduler's own gate
// bounds how many of those workers reach the GPU at once.
func (uc *InterpolateVideoUseCase) produceFrames(ctx context.Context, sched *scheduler.Scheduler, outDir string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.FrameWorkers)

	for i := 0; i < sched.OutputFrames(); i++ {
		g.Go(func() error {
			frame, err := sched.ProduceFrame(ctx, i)
			if err != nil {
				return err
			}
			return frames.Encode(frame, filepath.Join(outDir, fmt.Sprintf("frame_%06d.png", i)))
		})
	}

	return g.Wait()
}

// sourceRate falls back to 30 fps when the container did not expose one.
func sourceRate(extracted *port.FrameExtractionResult) entity.Rational {
	if extracted.FrameRate != nil {
		return *extracted.FrameRate
	}
	return entity.Rational{Num: 30, Den: 1}
}

func (uc *InterpolateVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.InterpolationRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *InterpolateVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.InterpolationRequestMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *InterpolateVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.InterpolationStatusMessage{
		JobID:              job.ID,
		UserID:             job.UserID,
		Status:             job.Status,
		VideoKey:           job.VideoKey,
		OutputKey:          job.OutputKey,
		Multiplier:         job.Multiplier,
		Divisor:            job.Divisor,
		SourceFrames:       job.SourceFrames,
		OutputFrames:       job.OutputFrames,
		InterpolatedFrames: job.InterpolatedFrames,
		SkippedFrames:      job.SkippedFrames,
		ErrorMessage:       job.ErrorMessage,
		Attempt:            job.Attempt,
		MaxAttempts:        job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
