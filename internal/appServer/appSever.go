// launching the server, job worker, kafka, redis
package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/sam3d-worker/config"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/kafka"
	"github.com/ds124wfegd/sam3d-worker/internal/service"
	"github.com/ds124wfegd/sam3d-worker/internal/transport"
	"github.com/ds124wfegd/sam3d-worker/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       2 * time.Minute, // inline payloads are large
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(new(logrus.JSONFormatter))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		logrus.Fatalf("error occured while building application: %s", err.Error())
	}
	defer app.Close()

	workerDone := make(chan struct{})
	if cfg.Worker.Embedded {
		go func() {
			defer close(workerDone)
			if err := worker.NewJobWorker(app.Consumer, app.Queue, logrus.StandardLogger()).Run(ctx); err != nil {
				logrus.Errorf("job worker stopped with error: %s", err.Error())
			}
		}()
	} else {
		close(workerDone)
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	jobHandler := transport.NewJobHandler(app.Queue, app.Pipeline.Provider.Ready)

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(jobHandler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithField("port", cfg.Server.Port).Print("App Started")

	<-ctx.Done()

	logrus.Print("App Shutting Down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
	<-workerDone
}

// NewProcessor runs only the queue worker against Kafka, for deployments that
// scale consumers apart from the API.
func NewProcessor(cfg *config.Config) {

	logrus.SetFormatter(new(logrus.JSONFormatter))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	fs := afero.NewOsFs()
	pipeline := NewPipeline(cfg, fs)

	repo, closeRepo, err := NewJobRepository(ctx, cfg, fs)
	if err != nil {
		logrus.Fatalf("error occured while opening job store: %s", err.Error())
	}
	defer closeRepo()

	if len(cfg.Kafka.Brokers) == 0 {
		logrus.Fatal("processor needs at least one kafka broker")
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer consumer.Close()

	queue := service.NewQueueService(repo, producer, pipeline.Jobs)

	logrus.WithField("brokers", cfg.Kafka.Brokers).Print("Processor Started")
	if err := worker.NewJobWorker(consumer, queue, logrus.StandardLogger()).Run(ctx); err != nil {
		logrus.Errorf("job worker stopped with error: %s", err.Error())
	}
	logrus.Print("Processor Shutting Down")
}
