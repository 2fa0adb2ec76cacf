package webservice

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/radu103/voxtext/internal/pkg/auth"
	"github.com/radu103/voxtext/internal/pkg/persistence"
	"github.com/radu103/voxtext/internal/pkg/status"
	"github.com/radu103/voxtext/internal/pkg/statusservice"
	"github.com/radu103/voxtext/internal/pkg/store"
	"github.com/radu103/voxtext/internal/pkg/utils"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Store provides job record access
type Store interface {
	Create(ctx context.Context, job *persistence.Job) error
	Get(id string) (*persistence.Job, error)
	List() []*persistence.Job
	Update(ctx context.Context, id string, mutate func(*persistence.Job) error) (*persistence.Job, error)
}

// Dispatcher hands accepted uploads off to the worker pool
type Dispatcher interface {
	Dispatch(id string) error
}

// Verifier checks login credentials
type Verifier interface {
	Verify(user, password string) bool
}

// WSConnHandler keeps websocket subscriptions
type WSConnHandler interface {
	HandleConnection(conn statusservice.WsConn) error
}

// Data keeps data required for service work
type Data struct {
	Port       int
	Store      Store
	Dispatcher Dispatcher
	Verifier   Verifier
	WSHandler  WSConnHandler
	SessionKey []byte
	UploadDir  string
	StaticDir  string
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Int("port", data.Port).Msg("Starting HTTP voxtext service")
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 180 * time.Second
	e.Server.WriteTimeout = 5 * time.Minute

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Store == nil {
		return errors.New("no store")
	}
	if data.Dispatcher == nil {
		return errors.New("no dispatcher")
	}
	if data.Verifier == nil {
		return errors.New("no credentials verifier")
	}
	if data.WSHandler == nil {
		return errors.New("no WSHandler")
	}
	if len(data.SessionKey) == 0 {
		return errors.New("no session key")
	}
	if data.UploadDir == "" {
		return errors.New("no upload dir")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("voxtext", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(session.Middleware(sessions.NewCookieStore(data.SessionKey)))
	promMdlw.Use(e)
	e.Use(auth.Middleware(authSkipper))

	e.POST("/upload", upload(data))
	e.GET("/jobs", listJobs(data))
	e.GET("/jobs/:id", jobStatus(data))
	e.GET("/download/:id", download(data))
	e.GET("/subscribe", subscribe(data))
	e.GET("/login", loginPage(data))
	e.POST("/login", login(data))
	e.GET("/logout", logout(data))
	e.GET("/", index(data))
	e.GET("/live", live(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func authSkipper(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/login" || p == "/live" || p == "/metrics"
}

type errResp struct {
	Error string `json:"error"`
}

type uploadResp struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func upload(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("upload method")()
		ctx := c.Request().Context()

		fh, err := c.FormFile("file")
		if err != nil {
			return c.JSON(http.StatusBadRequest, errResp{Error: "No file part in the request"})
		}
		if fh.Filename == "" {
			return c.JSON(http.StatusBadRequest, errResp{Error: "No file selected"})
		}

		id := uuid.New().String()
		storedName, err := utils.MakeStoredName(time.Now(), id, fh.Filename)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errResp{Error: "No file selected"})
		}

		storedPath := filepath.Join(data.UploadDir, storedName)
		if err := saveUpload(fh, storedPath); err != nil {
			goapp.Log.Error().Err(err).Send()
			return c.JSON(http.StatusInternalServerError, errResp{Error: "Can't save file"})
		}

		job := &persistence.Job{
			ID:               id,
			Status:           status.Queued.String(),
			CreatedAt:        time.Now(),
			OriginalFilename: fh.Filename,
			StoredPath:       storedPath,
		}
		if err := data.Store.Create(ctx, job); err != nil {
			goapp.Log.Error().Err(err).Send()
			return c.JSON(http.StatusInternalServerError, errResp{Error: "Can't create job"})
		}
		if err := data.Dispatcher.Dispatch(job.ID); err != nil {
			goapp.Log.Error().Err(err).Str("ID", job.ID).Msg("can't dispatch")
			// the record was already created, leave a terminal trace instead of a forever queued one
			if _, uErr := data.Store.Update(ctx, job.ID, func(j *persistence.Job) error {
				j.Status = status.Failed.String()
				j.Error = "not accepted: queue full"
				return nil
			}); uErr != nil {
				goapp.Log.Error().Err(uErr).Str("ID", job.ID).Msg("can't mark job failed")
			}
			return c.JSON(http.StatusServiceUnavailable, errResp{Error: "Server busy"})
		}

		return c.JSON(http.StatusOK, uploadResp{JobID: job.ID, Status: job.Status,
			Message: fmt.Sprintf("File %s uploaded and transcription queued", fh.Filename)})
	}
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("can't open upload: %w", err)
	}
	defer src.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("can't create upload dir: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("can't create '%s': %w", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("can't save '%s': %w", dst, err)
	}
	return nil
}

func jobStatus(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("status method")()
		id := c.Param("id")
		job, err := data.Store.Get(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(http.StatusNotFound, errResp{Error: "Job not found"})
			}
			goapp.Log.Error().Err(err).Send()
			return c.JSON(http.StatusInternalServerError, errResp{Error: "Service error"})
		}
		return c.JSON(http.StatusOK, job)
	}
}

func listJobs(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("list method")()
		return c.JSON(http.StatusOK, data.Store.List())
	}
}

func download(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("download method")()
		id := c.Param("id")
		job, err := data.Store.Get(id)
		if err != nil || status.From(job.Status) != status.Completed ||
			!utils.FileExists(job.OutputPath) {
			return c.JSON(http.StatusNotFound, errResp{Error: "File not available for download"})
		}
		return c.Attachment(job.OutputPath, filepath.Base(job.OutputPath))
	}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

func subscribe(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		return data.WSHandler.HandleConnection(ws)
	}
}

func loginPage(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.File(filepath.Join(data.StaticDir, "login.html"))
	}
}

func login(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("login method")()
		user := c.FormValue("username")
		pass := c.FormValue("password")
		next := auth.SafeNextPath(c.FormValue("next"))
		if !data.Verifier.Verify(user, pass) {
			goapp.Log.Warn().Str("user", goapp.Sanitize(user)).Msg("failed login")
			if auth.WantsJSON(c) {
				return c.JSON(http.StatusUnauthorized, errResp{Error: "Invalid credentials"})
			}
			return c.Redirect(http.StatusFound, "/login?error=1")
		}
		if err := auth.SetAuthenticated(c); err != nil {
			goapp.Log.Error().Err(err).Send()
			return c.JSON(http.StatusInternalServerError, errResp{Error: "Can't create session"})
		}
		if auth.WantsJSON(c) {
			return c.JSON(http.StatusOK, map[string]string{"message": "Logged in"})
		}
		return c.Redirect(http.StatusFound, next)
	}
}

func logout(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		if err := auth.ClearAuthenticated(c); err != nil {
			goapp.Log.Error().Err(err).Send()
		}
		return c.Redirect(http.StatusFound, "/login")
	}
}

func index(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.File(filepath.Join(data.StaticDir, "index.html"))
	}
}
