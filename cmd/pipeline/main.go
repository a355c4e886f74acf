// cmd/pipeline/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"autoapply/internal/catalog"
	"autoapply/internal/classifier"
	"autoapply/internal/common/aws"
	"autoapply/internal/common/config"
	"autoapply/internal/common/database"
	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/common/observability"
	"autoapply/internal/composer"
	"autoapply/internal/dispatcher"
	"autoapply/internal/generator"
	"autoapply/internal/inbound"
	"autoapply/internal/matcher"
	"autoapply/internal/models"
	"autoapply/internal/pipeline"
	"autoapply/internal/preferences"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting application pipeline...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Mail transport and alerting ---
	var transport dispatcher.Transport
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		transport = dispatcher.NewSESTransport(sesClient, log)
		zapLog.Info("SES transport initialized")
	} else {
		transport = logOnlyTransport{logger: log}
		zapLog.Warn("SES disabled, outbound mail is logged only")
	}

	var alerter inbound.Alerter = inbound.NoOpAlerter{}
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		alerter = inbound.NewSNSAlerter(snsClient, cfg.Integrations.AWS.SNS.TopicARN, log)
		zapLog.Info("SNS alerting initialized")
	}

	// --- Content generator ---
	gen := generator.NewHTTPClient(generator.Config{
		BaseURL:    cfg.APIs.GenAI.BaseURL,
		APIKey:     cfg.APIs.GenAI.APIKey,
		Timeout:    time.Duration(cfg.APIs.GenAI.Timeout) * time.Millisecond,
		MaxRetries: cfg.APIs.GenAI.MaxRetries,
	}, log)

	// --- Pipeline components ---
	db := pg.GetDB()

	prefs := preferences.NewStore(db, rdb.GetClient(), log).
		WithCacheTTL(time.Duration(cfg.Pipeline.SettingsCacheTTLSeconds) * time.Second)

	jobCatalog := catalog.NewElasticsearchCatalog(esClient.Client, cfg.Database.Elasticsearch.JobIndex, log)
	match := matcher.New(db, jobCatalog, log).WithPageSize(cfg.Pipeline.MatchPageSize)
	comp := composer.New(db, gen, log)
	disp := dispatcher.New(db, transport, dispatcher.NewQuotaReserver(rdb.GetClient()),
		cfg.Integrations.AWS.SES.FromEmail, log).
		WithMaxAttempts(cfg.Pipeline.DispatchRetries)

	cls := classifier.New(gen, log)
	ingestor := inbound.NewIngestor(db, cls, alerter, log)

	orchestrator := pipeline.NewOrchestrator(db, prefs, match, comp, disp, log).
		WithConcurrency(cfg.Pipeline.Concurrency)

	scheduler := pipeline.NewScheduler(prefs, orchestrator, ingestor, cfg.Pipeline.Schedule, log).
		WithObservability(obs)
	if err := scheduler.Start(); err != nil {
		zapLog.Fatal("scheduler start failed", zap.Error(err))
	}

	// --- HTTP surface: metrics, health, webhooks ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	mux.HandleFunc("/api/events/delivery", handleDeliveryEvent(disp))
	mux.HandleFunc("/api/inbound", handleInbound(ingestor))
	mux.HandleFunc("/api/pipeline/run", handleManualRun(orchestrator))
	mux.HandleFunc("/api/settings", handleSettingsPatch(prefs))
	mux.HandleFunc("/api/applications/approve", handleApprove(disp))

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}

// logOnlyTransport stands in for SES in environments without mail access.
type logOnlyTransport struct {
	logger logger.Logger
}

func (t logOnlyTransport) Send(ctx context.Context, env dispatcher.Envelope) error {
	t.logger.Info("mail send suppressed", map[string]interface{}{
		"mailId":  env.MailID,
		"to":      env.To,
		"subject": env.Subject,
	})
	return nil
}

func handleDeliveryEvent(disp *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var ev dispatcher.DeliveryEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if err := disp.HandleDeliveryEvent(r.Context(), ev); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleInbound(ing *inbound.Ingestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var email models.InboundEmail
		if err := json.NewDecoder(r.Body).Decode(&email); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		resp, err := ing.Ingest(r.Context(), email)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func handleManualRun(o *pipeline.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}
		summary, err := o.RunForUser(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func handleSettingsPatch(prefs *preferences.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			settings, err := prefs.Get(r.Context(), userID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, settings)
		case http.MethodPatch:
			var raw json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
				http.Error(w, "invalid payload", http.StatusBadRequest)
				return
			}
			settings, err := prefs.Apply(r.Context(), userID, raw)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, settings)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func handleApprove(disp *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			ApplicationID string `json:"applicationId"`
			Approved      bool   `json:"approved"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ApplicationID == "" {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if err := disp.Approve(r.Context(), req.ApplicationID, req.Approved); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the pipeline error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var stdErr *stderrors.StandardError
	if errors.As(err, &stdErr) {
		switch stdErr.Code {
		case stderrors.ErrCodeSettingsInvalid:
			status = http.StatusUnprocessableEntity
		case stderrors.ErrCodeResponseUnmatched, stderrors.ErrCodeProfileNotFound,
			stderrors.ErrCodeTemplateNotFound:
			status = http.StatusNotFound
		case stderrors.ErrCodeSettingsDisabled, stderrors.ErrCodeApprovalPending:
			status = http.StatusConflict
		case stderrors.ErrCodeQuotaExceeded:
			status = http.StatusTooManyRequests
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(stdErr)
		return
	}
	http.Error(w, err.Error(), status)
}
