package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lora-monitor/internal/config"
	"lora-monitor/internal/decrypt"
	"lora-monitor/internal/logging"
	"lora-monitor/internal/metrics"
	mqttcli "lora-monitor/internal/mqtt"
	"lora-monitor/internal/processor"
	"lora-monitor/internal/report"
	"lora-monitor/internal/webhook"
)

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("all") {
		cfg.Output.ShowAll = showAll
	}
	if flags.Changed("json") && jsonOut {
		cfg.Output.Format = config.FormatJSON
	}
	if flags.Changed("file") {
		cfg.Input.Source = config.SourceFile
		cfg.Input.File = inFile
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	return cfg, cfg.Validate()
}

func newProcessor(cfg config.Config, logger zerolog.Logger) (processor.Processor, error) {
	filter, err := cfg.Filter()
	if err != nil {
		return processor.Processor{}, err
	}
	order, err := cfg.DevAddrOrder()
	if err != nil {
		return processor.Processor{}, err
	}
	return processor.Processor{
		Logger:       logger,
		Filter:       filter,
		Decryptor:    decrypt.New(),
		DevAddrOrder: order,
	}, nil
}

func newReporter(cfg config.Config, w io.Writer) processor.Sink {
	if cfg.Output.Format == config.FormatJSON {
		return report.JSONWriter{W: w}
	}
	return report.TextWriter{W: w}
}

func newMQTTClient(ctx context.Context, c config.MQTTConfig, logger zerolog.Logger) (*mqttcli.Client, error) {
	client, err := mqttcli.NewClient(mqttcli.ClientOptions{
		Broker:    c.Broker,
		ClientID:  c.ClientID,
		Username:  c.Username,
		Password:  c.Password,
		Clean:     true,
		KeepAlive: 30,
		Logger:    &logger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

const shutdownGrace = time.Second

// tally keeps a copy of the counters so a summary can be printed even when
// the source is still blocked on read at shutdown.
type tally struct {
	mu sync.Mutex
	s  processor.Stats
}

func (t *tally) observe(r processor.Result) {
	t.mu.Lock()
	t.s = t.s.Observe(r)
	t.mu.Unlock()
}

func (t *tally) stats() processor.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLogger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups, cfg.Logging.MaxAgeDays)
	if err != nil {
		return err
	}
	defer closeLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}
	// the session goroutine may still be emitting when the summary is written
	out := report.NewSyncWriter(cmd.OutOrStdout())
	sinks := processor.MultiSink{newReporter(cfg, out)}

	if cfg.MQTTOutput.Broker != "" {
		outClient, err := newMQTTClient(ctx, cfg.MQTTOutput, logger)
		if err != nil {
			return fmt.Errorf("connect output mqtt: %w", err)
		}
		defer outClient.Disconnect()
		sinks = append(sinks, mqttcli.Publisher{
			Client: outClient,
			Topic:  cfg.MQTTOutput.Topic,
			QoS:    byte(cfg.MQTTOutput.QoS),
			Retain: cfg.MQTTOutput.Retain,
		})
	}
	if cfg.Webhook.URL != "" {
		sinks = append(sinks, webhook.Client{
			URL:           cfg.Webhook.URL,
			Method:        cfg.Webhook.Method,
			Timeout:       time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second,
			AuthType:      cfg.Webhook.AuthType,
			AuthToken:     cfg.Webhook.AuthToken,
			AuthHeaderKey: cfg.Webhook.AuthHeaderKey,
			Logger:        logger,
		})
	}

	if srv := metrics.Serve(cfg.Metrics.Bind, logger); srv != nil {
		defer srv.Close()
	}

	var source processor.LineSource
	switch cfg.Input.Source {
	case config.SourceFile:
		f, err := os.Open(cfg.Input.File)
		if err != nil {
			return err
		}
		defer f.Close()
		source = processor.NewReaderSource(f)
	case config.SourceMQTT:
		inClient, err := newMQTTClient(ctx, cfg.MQTTInput, logger)
		if err != nil {
			return fmt.Errorf("connect input mqtt: %w", err)
		}
		src := mqttcli.NewSource(256)
		// Close before Disconnect so a handler blocked on a full buffer returns.
		defer inClient.Disconnect()
		defer src.Close()
		if err := inClient.Subscribe(ctx, cfg.MQTTInput.Topic, byte(cfg.MQTTInput.QoS), src.Handler()); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		source = src
	default:
		source = processor.NewReaderSource(cmd.InOrStdin())
	}

	sig, _ := cfg.Signature()
	logger.Info().
		Str("device", sig.Name).
		Str("source", cfg.Input.Source).
		Int("payload_length", sig.PayloadLength).
		Uint8("port", sig.Port).
		Msg("monitoring")

	t := &tally{s: processor.NewStats(time.Now())}
	session := processor.Session{
		Processor: proc,
		Source:    source,
		Sink:      sinks,
		ShowAll:   cfg.Output.ShowAll,
		Logger:    logger,
		Observe: func(r processor.Result) {
			t.observe(r)
			metrics.Observe(r)
		},
	}

	errc := make(chan error, 1)
	go func() {
		_, err := session.Run(ctx)
		errc <- err
	}()
	select {
	case err = <-errc:
	case <-ctx.Done():
		logger.Info().Msg("interrupted")
		select {
		case err = <-errc:
		case <-time.After(shutdownGrace):
			err = nil
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logger.Error().Err(err).Msg("input failed")
	}

	if cfg.Output.Format == config.FormatText {
		if werr := report.WriteSummary(out, t.stats(), time.Now(), sig.Name); werr != nil {
			return werr
		}
	}
	return err
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLogger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups, cfg.Logging.MaxAgeDays)
	if err != nil {
		return err
	}
	defer closeLogger()

	proc, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}
	res, err := proc.DecodePayload(args[0])
	if err != nil {
		return err
	}
	if !res.Verdict.Matched {
		logger.Warn().Str("verdict", res.Verdict.String()).Msg("payload does not match the configured device")
	}
	return newReporter(cfg, cmd.OutOrStdout()).Emit(cmd.Context(), res)
}
