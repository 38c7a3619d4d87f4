package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"voxsh/cmd/voxsh/ui"
	"voxsh/internal/audio"
	"voxsh/internal/config"
	"voxsh/internal/metrics"
	"voxsh/internal/perception"
	"voxsh/internal/resolve"
	"voxsh/internal/speech"
	"voxsh/internal/tactile"
	"voxsh/internal/ux"
)

// app bundles the collaborators of one voxsh process.
type app struct {
	cfg      *config.Config
	out      io.Writer
	styles   ui.Styles
	report   *ui.Renderer
	prompter resolve.Prompter
	metrics  *metrics.Collector

	resolver *resolve.Resolver
	listener *speech.Listener // nil in text-only commands
}

// appDeps lets tests replace the external collaborators.
type appDeps struct {
	oracle   perception.Oracle
	executor tactile.Executor
	source   audio.Source
	factory  speech.TranscriberFactory
	prompter resolve.Prompter
	out      io.Writer
	styled   bool
}

// newApp wires the oracle, executor, resolver and (when voice is true) the
// listener from cfg. Zero-valued deps are built from cfg.
func newApp(ctx context.Context, cfg *config.Config, voice bool, deps appDeps) (*app, error) {
	if err := cfg.Validate(voice); err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		out:     deps.out,
		metrics: metrics.New(),
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	a.styles = ui.DefaultStyles()
	a.report = ui.NewRenderer(deps.styled, a.styles.Theme)

	prompter := deps.prompter
	if prompter == nil {
		prompter = ux.NewPrompter(os.Stdin, os.Stdout)
	}
	a.prompter = ux.NewExitAwarePrompter(prompter)

	oracle := deps.oracle
	if oracle == nil {
		gc := perception.DefaultGeminiConfig(cfg.LLM.APIKey)
		if cfg.LLM.Model != "" {
			gc.Model = cfg.LLM.Model
		}
		gc.BaseURL = cfg.LLM.BaseURL
		gc.Timeout = cfg.GetLLMTimeout()
		if cfg.LLM.MaxOutputTokens > 0 {
			gc.MaxOutputTokens = cfg.LLM.MaxOutputTokens
		}
		gemini, err := perception.NewGeminiOracle(ctx, gc)
		if err != nil {
			return nil, fmt.Errorf("failed to create oracle: %w", err)
		}
		oracle = gemini
		logger.Debug("Oracle ready", zap.String("model", gemini.Model()))
	}
	oracle = perception.NewTracingOracle(oracle, a.metrics)

	executor := deps.executor
	if executor == nil {
		direct := tactile.NewDirectExecutorWithConfig(tactile.ExecutorConfig{
			DefaultWorkingDir:  cfg.Execution.WorkingDirectory,
			DefaultTimeout:     cfg.GetExecutionTimeout(),
			InheritEnvironment: cfg.Execution.InheritEnvironment,
			AllowedEnvironment: cfg.Execution.AllowedEnvVars,
			MaxOutputBytes:     cfg.Execution.MaxOutputBytes,
		})
		direct.SetAuditCallback(a.metrics.ObserveAudit)
		executor = direct
	}
	shell := tactile.NewShellRunner(executor, tactile.WithWorkingDir(cfg.Execution.WorkingDirectory))

	synth := perception.NewSynthesizer(oracle, perception.WithTargetPlatform(cfg.LLM.Platform))
	judge := perception.NewJudge(oracle)

	a.resolver = resolve.New(synth, judge, shell, a.prompter,
		resolve.Options{
			MaxAttempts: cfg.Resolver.MaxAttempts,
			AutoAccept:  cfg.Resolver.AutoAccept,
		},
		resolve.WithObserver(a.observe),
		resolve.WithRecorder(a.metrics),
	)

	if voice {
		a.listener = newListener(cfg, deps, a.signal)
	}
	return a, nil
}

// newListener builds a listening session over the configured capture source
// and transcriber.
func newListener(cfg *config.Config, deps appDeps, onSignal func(speech.Signal)) *speech.Listener {
	source := deps.source
	if source == nil {
		source = captureSource(cfg)
	}
	factory := deps.factory
	if factory == nil {
		factory = speech.VoskFactory(cfg.Speech.TranscriberURL, cfg.Speech.SampleRate)
	}
	return speech.NewListener(source, factory, speech.ListenConfig{
		Timeout:       cfg.GetListenTimeout(),
		SilenceGrace:  cfg.GetSilenceGrace(),
		FrameWait:     cfg.GetFrameWait(),
		QueueCapacity: cfg.GetQueueCapacity(),
	}, speech.WithSignalHandler(onSignal))
}

// captureSource returns the microphone, or a file replay when --audio-file is set.
func captureSource(cfg *config.Config) audio.Source {
	if audioFile != "" {
		return &fileSource{path: audioFile}
	}
	return audio.NewArecordSource(cfg.Speech.CaptureBinary, cfg.Speech.Device)
}

// fileSource reopens a raw PCM file for every listening session.
type fileSource struct {
	path string
}

func (s *fileSource) Format() audio.Format { return audio.DefaultFormat }

func (s *fileSource) Run(ctx context.Context, q *audio.Queue) error {
	f, err := os.Open(s.path)
	if err != nil {
		q.Close(err)
		return err
	}
	defer f.Close()
	src := audio.NewReaderSource(f)
	src.Realtime = true
	return src.Run(ctx, q)
}

// listen runs one listening session and records its end state.
func (a *app) listen(ctx context.Context) (string, error) {
	text, err := a.listener.Listen(ctx)
	a.metrics.ObserveListen(a.listener.State())
	return text, err
}

// serveMetrics starts the metrics endpoint when configured. The returned
// stop function blocks until the server has shut down.
func (a *app) serveMetrics(ctx context.Context) (stop func(), err error) {
	if a.cfg.Metrics.Addr == "" {
		return func() {}, nil
	}
	srv, err := metrics.Listen(a.cfg.Metrics.Addr, a.metrics)
	if err != nil {
		return nil, err
	}
	logger.Info("Serving metrics", zap.String("addr", srv.Addr()))

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx); err != nil {
			logger.Warn("Metrics server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

// signal renders listening feedback.
func (a *app) signal(s speech.Signal) {
	switch s {
	case speech.SignalListening:
		fmt.Fprintln(a.out, a.styles.Listening.Render("Listening... speak now."))
	case speech.SignalPaused:
		fmt.Fprintln(a.out, a.styles.Muted.Render("(silence)"))
	case speech.SignalWaiting:
		fmt.Fprintln(a.out, a.styles.Muted.Render("(waiting for audio)"))
	}
}

// observe renders resolver progress.
func (a *app) observe(ev resolve.Event) {
	switch ev.State {
	case resolve.StateSynthesizing:
		if ev.Index > 1 {
			fmt.Fprintln(a.out, a.styles.Warning.Render(fmt.Sprintf("Trying a fix (attempt %d of %d)...", ev.Index, a.cfg.Resolver.MaxAttempts)))
		}
	case resolve.StateAwaitingConfirmation:
		fmt.Fprintln(a.out, "Suggested command:")
		fmt.Fprintln(a.out, a.styles.Command.Render(ev.Command))
		if perception.IsUnsafeSentinel(ev.Command) {
			fmt.Fprintln(a.out, a.styles.Warning.Render("The model considered this request unsafe or unclear."))
		}
	case resolve.StateExecuting:
		fmt.Fprintln(a.out, a.styles.Bold.Render("Running:")+" "+ev.Command)
	case resolve.StateJudging:
		if ev.Attempt == nil {
			return
		}
		fmt.Fprintln(a.out, a.styles.Rule("output"))
		if out := ev.Attempt.Output(); out != "" {
			fmt.Fprintln(a.out, out)
		}
		fmt.Fprintln(a.out, a.styles.Rule(""))
		if ev.Attempt.Faulted() {
			fmt.Fprintln(a.out, a.styles.Error.Render(fmt.Sprintf("Command failed (exit %d).", ev.Attempt.ExitCode)))
		}
	case resolve.StateAbandoned:
		if ev.Err != nil {
			fmt.Fprintln(a.out, a.styles.Error.Render("Giving up:")+" "+ev.Err.Error())
		}
	}
}
