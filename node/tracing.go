package node

import (
	"context"
	"strings"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	cfg "github.com/celestiaorg/syncqueue/config"
)

const appName = "syncqueue"

// setupPyroscope sets up pyroscope profiler and optionally tracing.
func setupPyroscope(instCfg *cfg.InstrumentationConfig, labels map[string]string) (*pyroscope.Profiler, *sdktrace.TracerProvider, error) {
	var tp *sdktrace.TracerProvider
	if instCfg.PyroscopeTrace {
		var err error
		if tp, err = setupTracing(instCfg.PyroscopeURL, labels); err != nil {
			return nil, nil, err
		}
	}

	pflr, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   instCfg.PyroscopeURL,
		Logger:          nil, // use the noop logger by passing nil
		Tags:            labels,
		ProfileTypes:    toPyroscopeProfiles(instCfg.PyroscopeProfileTypes),
	})
	if err != nil {
		if tp != nil {
			_ = tp.Shutdown(context.Background())
		}
		return nil, nil, err
	}

	return pflr, tp, nil
}

func setupTracing(addr string, labels map[string]string) (*sdktrace.TracerProvider, error) {
	tp, err := tracerProviderDebug()
	if err != nil {
		return nil, err
	}

	// Set the Tracer Provider and the W3C Trace Context propagator as globals.
	// Goroutines are annotated with the span ID so profiling samples carry
	// the span that produced them.
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp,
		otelpyroscope.WithAppName(appName),
		otelpyroscope.WithRootSpanOnly(true),
		otelpyroscope.WithAddSpanName(true),
		otelpyroscope.WithPyroscopeURL(addr),
		otelpyroscope.WithProfileBaselineLabels(labels),
		otelpyroscope.WithProfileBaselineURL(true),
		otelpyroscope.WithProfileURL(true),
	))

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

func tracerProviderDebug() (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp))), nil
}

func toPyroscopeProfiles(profiles string) []pyroscope.ProfileType {
	pts := make([]pyroscope.ProfileType, 0)
	for _, p := range strings.Split(profiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			pts = append(pts, pyroscope.ProfileType(p))
		}
	}
	return pts
}
