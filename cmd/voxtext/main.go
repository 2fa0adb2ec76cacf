package main

import (
	"context"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/google/uuid"
	"github.com/labstack/gommon/color"

	"github.com/radu103/voxtext/internal/pkg/auth"
	"github.com/radu103/voxtext/internal/pkg/filedb"
	"github.com/radu103/voxtext/internal/pkg/inform"
	"github.com/radu103/voxtext/internal/pkg/persistence"
	"github.com/radu103/voxtext/internal/pkg/postgres"
	"github.com/radu103/voxtext/internal/pkg/statusservice"
	"github.com/radu103/voxtext/internal/pkg/store"
	"github.com/radu103/voxtext/internal/pkg/transcriber"
	"github.com/radu103/voxtext/internal/pkg/utils"
	"github.com/radu103/voxtext/internal/pkg/webservice"
	"github.com/radu103/voxtext/internal/pkg/worker"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	setDefaults()
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	backend := initBackend(ctx)

	jobs, err := store.NewJobs(ctx, backend)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init jobs store")
	}

	wsKeeper := statusservice.NewWSConnKeeper()
	wsNotifier, err := statusservice.NewNotifier(wsKeeper)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init ws notifier")
	}
	jobs.AddListener(wsNotifier.JobChanged)

	engineCmd := strings.Fields(cfg.GetString("engine.cmd"))
	runner, err := transcriber.NewRunner(engineCmd, cfg.GetString("outputDir"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init engine runner")
	}

	wData := &worker.ServiceData{
		WorkerCount: cfg.GetInt("worker.count"),
		QueueSize:   cfg.GetInt("worker.queueSize"),
		Store:       jobs,
		Transcriber: runner,
		Notifier:    initNotifier(),
	}
	doneCh, err := worker.StartWorkerService(ctx, wData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start worker service")
	}

	verifier, err := auth.NewVerifier(cfg.GetString("auth.user"), cfg.GetString("auth.passwordHash"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init credentials verifier")
	}

	data := &webservice.Data{
		Port:       cfg.GetInt("port"),
		Store:      jobs,
		Dispatcher: wData,
		Verifier:   verifier,
		WSHandler:  wsKeeper,
		SessionKey: sessionKey(),
		UploadDir:  cfg.GetString("uploadDir"),
		StaticDir:  cfg.GetString("staticDir"),
	}

	go utils.RunPerfEndpoint()

	err = webservice.StartWebServer(data)
	if err != nil {
		goapp.Log.Error().Err(err).Msg("web server stopped")
	}

	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All workers returned")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}

	closeCtx, cf := context.WithTimeout(context.Background(), time.Second*10)
	defer cf()
	if err := jobs.Close(closeCtx); err != nil {
		goapp.Log.Error().Err(err).Msg("can't make final jobs flush")
	}
	goapp.Log.Info().Msg("Bye")
}

func setDefaults() {
	cfg := goapp.Config
	cfg.SetDefault("port", 10301)
	cfg.SetDefault("uploadDir", "/app/audio")
	cfg.SetDefault("outputDir", "/app/output")
	cfg.SetDefault("staticDir", "static")
	cfg.SetDefault("db.file", "data/jobs.json")
	cfg.SetDefault("engine.cmd", "python3 /app/code/voice2text.py")
	cfg.SetDefault("worker.count", 4)
}

func initBackend(ctx context.Context) store.Backend {
	cfg := goapp.Config
	fileDB, err := filedb.NewDB(cfg.GetString("db.file"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file db")
	}
	dbURL := cfg.GetString("db.url")
	if dbURL == "" {
		goapp.Log.Info().Msg("no db.url - using file backend")
		return fileDB
	}
	pgDB, err := postgres.NewDB(ctx, dbURL)
	if err != nil {
		goapp.Log.Warn().Err(err).Str("from", "postgres").Str("to", "file").
			Msg("persistence backend degraded")
		return fileDB
	}
	res, err := persistence.NewFallback(pgDB, fileDB)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init fallback backend")
	}
	return res
}

func initNotifier() worker.Notifier {
	cfg := goapp.Config
	var sender inform.Sender
	var err error
	if cfg.GetString("smtp.fakeUrl") != "" {
		sender, err = inform.NewFakeSender(cfg)
	} else if cfg.GetString("smtp.host") != "" {
		sender, err = inform.NewSimpleSender(cfg)
	} else {
		goapp.Log.Info().Msg("no smtp config - email notifications off")
		return nil
	}
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init email sender")
	}
	res, err := inform.NewService(sender, cfg.GetString("mail.from"), cfg.GetStringSlice("mail.to"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init inform service")
	}
	return res
}

func sessionKey() []byte {
	key := goapp.Config.GetString("session.key")
	if key == "" {
		goapp.Log.Warn().Msg("no session.key - sessions will not survive a restart")
		key = uuid.NewString()
	}
	return []byte(key)
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
                    __            __
 _   ______  _  __ / /____  _  __/ /_
| | / / __ \| |/_// __/ _ \| |/_/ __/
| |/ / /_/ />  < / /_/  __/>  </ /_
|___/\____/_/|_| \__/\___/_/|_|\__/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/radu103/voxtext"))
}
