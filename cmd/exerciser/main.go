// exerciser repeatedly drives a configured AWS-shaped operation through
// the full build/sign/dispatch pipeline on a cron schedule, recording
// Prometheus metrics and serving them over HTTP — a synthetic monitor
// for whatever service awscore is pointed at.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ethanadams/awscore/checksum"
	"github.com/ethanadams/awscore/credential"
	"github.com/ethanadams/awscore/encoding"
	"github.com/ethanadams/awscore/exec"
	"github.com/ethanadams/awscore/internal/config"
	"github.com/ethanadams/awscore/internal/logging"
	"github.com/ethanadams/awscore/internal/scheduler"
	"github.com/ethanadams/awscore/metrics"
	"github.com/ethanadams/awscore/middleware"
	"github.com/ethanadams/awscore/request"
	"github.com/ethanadams/awscore/response"
	"github.com/ethanadams/awscore/streaming"
	"github.com/ethanadams/awscore/transport"
)

func main() {
	configPath := flag.String("config", "exerciser.yaml", "path to config file")
	runOnce := flag.String("run-once", "", "run one named operation immediately and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := logging.New(cfg.Logging.Level)
	mc := metrics.NewCollector()

	runner, err := newOperationRunner(cfg, logger, mc)
	if err != nil {
		log.Fatalf("building executor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runOnce != "" {
		for _, op := range cfg.Operations {
			if op.Name == *runOnce {
				if err := runner.Run(ctx, op); err != nil {
					log.Fatalf("operation %s failed: %v", op.Name, err)
				}
				return
			}
		}
		log.Fatalf("operation not found: %s", *runOnce)
	}

	sched := scheduler.New(cfg, runner, logger)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("starting scheduler: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}

	go func() {
		logger.Info("metrics server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	sched.Stop()
	runner.executor.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	cancel()
}

// operationRunner implements scheduler.Runner: it builds an AWSRequest
// from a config.Operation's static method/path/query/headers/body and
// drives it through one shared Executor for the configured service.
type operationRunner struct {
	cfg      config.ServiceConfig
	executor *exec.Executor
}

func newOperationRunner(cfg *config.Config, logger logging.Logger, mc *metrics.Collector) (*operationRunner, error) {
	accessKey, secretKey, sessionToken := cfg.Credentials()
	creds := credential.Static(credential.Credential{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    sessionToken,
	})

	base := transport.Default(nil)
	timed := transport.WithTiming(base, mc.TimingObserver(cfg.Service.ServiceID, "exerciser"))

	ex := exec.New(exec.Config{
		ServiceID:               cfg.Service.ServiceID,
		SigningName:             cfg.Service.SigningName,
		Region:                  cfg.Service.Region,
		Protocol:                response.Protocol(cfg.Service.Protocol),
		Timeout:                 30 * time.Second,
		MaxAttempts:             3,
		Middlewares:             []middleware.Middleware{userAgentMiddleware{}},
		Logger:                  logger,
		DoubleURIEncode:         cfg.Service.SigningName != "s3",
		S3DisableChunkedUploads: cfg.Service.S3DisableChunkedUploads,
	}, creds, timed, mc)

	return &operationRunner{cfg: cfg.Service, executor: ex}, nil
}

func (r *operationRunner) Run(ctx context.Context, op config.Operation) error {
	desc := request.Descriptor{Name: op.Name, HTTPMethod: op.Method, HTTPPath: op.Path}
	rcfg := request.ServiceConfig{
		Endpoint:   r.cfg.Endpoint,
		Protocol:   request.Protocol(r.cfg.Protocol),
		APIVersion: r.cfg.APIVersion,
	}

	checksumMW := checksum.Middleware(checksum.OperationChecksumOptions{
		ChecksumHeader:    op.Checksum.Header,
		ChecksumRequired:  op.Checksum.Required,
		MD5ChecksumHeader: op.Checksum.MD5ChecksumHeader,
	}, checksum.Options{CalculateMD5: r.cfg.CalculateMD5})

	build := func() (*request.AWSRequest, error) {
		req, err := request.Build(rcfg, desc, staticInputShape{op: op})
		if err != nil {
			return nil, err
		}
		if op.Body.Literal == "" && op.Body.Size != nil && op.Body.Size.Int64() > 0 {
			req.StreamBody = streaming.NewByteChunkReader(make([]byte, op.Body.Size.Int64()))
			req.Header.Set("Content-Type", "application/octet-stream")
		}
		return checksumMW.HandleBuild(ctx, req)
	}

	decode := func(resp transport.Response) (struct{}, error) {
		return struct{}{}, response.Decode(resp, response.Protocol(r.cfg.Protocol), nil)
	}

	_, err := exec.Execute(ctx, r.executor, op.Name, build, decode)
	return err
}

// staticInputShape adapts a config.Operation's literal query/header/body
// values into request.InputShape, since the exerciser has no generated
// per-operation input type to bind against.
type staticInputShape struct {
	op config.Operation
}

func (s staticInputShape) Bindings() []request.MemberBinding {
	bindings := make([]request.MemberBinding, 0, len(s.op.Query)+len(s.op.Headers))
	for name, value := range s.op.Query {
		v := value
		bindings = append(bindings, request.MemberBinding{
			Name:     name,
			Location: request.QueryParam{Name: name},
			Render:   func() (string, error) { return v, nil },
		})
	}
	for name, value := range s.op.Headers {
		v := value
		bindings = append(bindings, request.MemberBinding{
			Name:     name,
			Location: request.Header{Name: name},
			Render:   func() (string, error) { return v, nil },
		})
	}
	return bindings
}

// Payload returns PayloadNone for a sized (non-literal) body: that case
// is streamed through an aws-chunked signing reader instead, attached to
// the AWSRequest after Build in operationRunner.Run.
func (s staticInputShape) Payload() request.PayloadMember {
	if s.op.Body.Literal != "" {
		return request.PayloadMember{Kind: request.PayloadRaw, Raw: request.Payload{Bytes: []byte(s.op.Body.Literal)}}
	}
	return request.PayloadMember{Kind: request.PayloadNone}
}

func (s staticInputShape) Body() encoding.Encodable { return nil }

// userAgentMiddleware stamps every request with this module's user
// agent string before signing.
type userAgentMiddleware struct{}

func (userAgentMiddleware) ID() string { return "UserAgent" }

func (userAgentMiddleware) HandleBuild(ctx context.Context, req *request.AWSRequest) (*request.AWSRequest, error) {
	req.Header.Set("User-Agent", "awscore-exerciser/1.0")
	return req, nil
}
