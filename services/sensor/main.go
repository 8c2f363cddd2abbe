// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/qbionet/photosynthos/services/sensor/core"
	"github.com/qbionet/photosynthos/services/sensor/datatypes"
	"github.com/qbionet/photosynthos/services/sensor/eventlog"
	"github.com/qbionet/photosynthos/services/sensor/observability"
	"github.com/qbionet/photosynthos/services/sensor/persistence"
	"github.com/qbionet/photosynthos/services/sensor/routes"
	"github.com/qbionet/photosynthos/services/sensor/scheduler"
)

const serviceName = "sensor-service"

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// initTracer sets up OTLP trace export when a collector endpoint is
// configured. Returns a nil cleanup when tracing is disabled so the service
// runs standalone without a collector.
func initTracer() (func(context.Context), error) {
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return nil, nil
	}

	ctx := context.Background()
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := getEnv("SENSOR_PORT", "12215")

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	if cleanup != nil {
		defer cleanup(context.Background())
	}

	cfg := core.Config{
		NodeID:   getEnv("SENSOR_NODE_ID", core.DefaultConfig().NodeID),
		Location: getEnv("SENSOR_LOCATION", core.DefaultConfig().Location),
		Kind:     getEnv("SENSOR_KIND", core.DefaultConfig().Kind),
	}
	if raw := os.Getenv("SENSOR_MODE_COUNT"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count <= 0 {
			slog.Warn("SENSOR_MODE_COUNT is invalid, using default", "value", raw)
		} else {
			cfg.ModeCount = count
		}
	}

	var rng core.RandSource
	if raw := os.Getenv("SENSOR_SEED"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Fatalf("SENSOR_SEED must be an integer: %v", err)
		}
		slog.Info("using fixed construction seed", "seed", seed)
		rng = core.NewSeededRand(seed)
	} else {
		rng = core.NewRand()
	}

	clock := core.NewSystemClock()
	eventLog := eventlog.New()
	node := core.NewSensorNode(cfg, clock, rng, eventLog)
	metrics := observability.InitMetrics()

	eventLog.Append(datatypes.Message{
		Text:      "biosensor node online",
		NodeID:    cfg.NodeID,
		Timestamp: clock.Now(),
	})

	var sinks []persistence.Sink
	fileSink, err := persistence.NewFileSink(getEnv("SENSOR_LOG_DIR", "biosensor_logs"))
	if err != nil {
		log.Fatalf("failed to initialize the file sink: %v", err)
	}
	sinks = append(sinks, fileSink)

	if token := os.Getenv("INFLUXDB_TOKEN"); token != "" {
		influxSink := persistence.NewInfluxSink(
			getEnv("INFLUXDB_URL", "http://influxdb:8086"),
			token,
			getEnv("INFLUXDB_ORG", "qbionet"),
			getEnv("INFLUXDB_BUCKET", "biosensor"),
		)
		defer influxSink.Close()
		sinks = append(sinks, influxSink)
		slog.Info("InfluxDB telemetry sink enabled")
	}

	interval := scheduler.DefaultConfig().Interval
	if raw := os.Getenv("SENSOR_SCAN_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			slog.Warn("SENSOR_SCAN_INTERVAL is invalid, using default", "value", raw)
		} else {
			interval = parsed
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updater := scheduler.New(node, eventLog, sinks, metrics, scheduler.Config{Interval: interval})
	if err := updater.Start(ctx); err != nil {
		log.Fatalf("failed to start the updater: %v", err)
	}
	defer updater.Stop()

	router := gin.Default()
	if cleanup != nil {
		router.Use(otelgin.Middleware(serviceName))
	}
	routes.SetupRoutes(router, node, eventLog, metrics)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	go func() {
		slog.Info("starting the sensor service", "port", port, "node_id", cfg.NodeID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}
