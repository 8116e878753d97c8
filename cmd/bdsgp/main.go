package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"bdsgp/internal/handlers"
	"bdsgp/internal/manager"
	"bdsgp/internal/middleware"
	"bdsgp/internal/store"
	"bdsgp/internal/upstream"
	"bdsgp/internal/utils"
	"bdsgp/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"
)

type App struct {
	config      manager.Config
	manager     *manager.Manager
	store       *store.DB
	logger      *utils.Logger
	wsHub       *middleware.Hub
	rateLimiter *middleware.RateLimiter
	tlsEnabled  bool
	tlsCertPath string
	tlsKeyPath  string
}

var app *App

const (
	envUseTLS  = "BDSGP_USE_TLS"
	envTLSCert = "BDSGP_TLS_CERT"
	envTLSKey  = "BDSGP_TLS_KEY"
	envConfig  = "BDSGP_CONFIG"
)

func envBool(key string) bool {
	val := os.Getenv(key)
	if val == "" {
		return false
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false
	}
	return parsed
}

func main() {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := manager.LoadConfig(os.Getenv(envConfig))
	if err != nil {
		log.Fatalf("Loading configuration failed: %v", err)
	}

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = utils.DefaultLogPath()
	}
	logger := utils.NewLogger(logPath)
	logger.SetMirror(os.Stdout)
	defer logger.Close()

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Opening sample store failed: %v", err)
	}
	defer db.Close()

	client := upstream.NewClient(cfg.Upstream, logger)
	app = &App{
		config:      cfg,
		manager:     manager.New(cfg, client, db, logger),
		store:       db,
		logger:      logger,
		wsHub:       middleware.NewHub(logger),
		rateLimiter: middleware.NewRateLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimitPerMinute)), 10),
		tlsEnabled:  envBool(envUseTLS),
		tlsCertPath: os.Getenv(envTLSCert),
		tlsKeyPath:  os.Getenv(envTLSKey),
	}
	app.manager.SetBroadcaster(app.wsHub)

	go app.wsHub.Run()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go app.manager.Run(ctx)

	r := setupRouter()

	srv := &http.Server{
		Addr:           ":" + strconv.Itoa(cfg.Port),
		Handler:        compressed(r),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	logger.Printf("BDSGP directory %s starting", version.String())
	if app.tlsEnabled {
		if app.tlsCertPath == "" || app.tlsKeyPath == "" {
			log.Fatalf("%s is enabled but %s or %s not provided", envUseTLS, envTLSCert, envTLSKey)
		}
		go func() {
			log.Printf("Starting HTTPS server on port %d", cfg.Port)
			if err := srv.ListenAndServeTLS(app.tlsCertPath, app.tlsKeyPath); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTPS server failed to start: %v", err)
			}
		}()
	} else {
		go func() {
			log.Printf("Starting server on port %d", cfg.Port)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed to start: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop the refresh loop before the store closes.
	stop()
	app.rateLimiter.Stop()
	app.wsHub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// compressed gzips responses except the websocket upgrade, which needs the
// raw hijackable connection.
func compressed(h http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(h)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/ws" {
			h.ServeHTTP(w, req)
			return
		}
		gz.ServeHTTP(w, req)
	})
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if app.config.VerboseHTTP {
		r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC1123),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		}))
	}

	r.Use(middleware.SecurityHeaders(app.config.AllowIFrame))
	r.Use(middleware.CORS())
	r.Use(app.rateLimiter.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		ready := app.manager.Ready()
		body := gin.H{"ready": ready, "stats": app.manager.Stats()}
		if app.store != nil {
			if err := app.store.Ping(c.Request.Context()); err != nil {
				ready = false
				body["ready"] = false
				body["store_error"] = err.Error()
			}
		}
		if err := app.manager.LastError(); err != nil {
			body["upstream_error"] = err.Error()
		}
		if !ready {
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Current())
	})

	serverHandlers := handlers.NewServerHandlers(app.manager)

	api := r.Group("/api")
	{
		api.GET("/servers", serverHandlers.APIServers)
		api.GET("/servers/:uuid", serverHandlers.APIServer)
		api.GET("/servers/:uuid/motd", serverHandlers.APIServerMOTD)
		api.GET("/stats", serverHandlers.APIStats)
		api.GET("/history", serverHandlers.APIHistory)
		api.POST("/motd/preview", serverHandlers.APIMOTDPreview)
	}

	r.GET("/ws", app.wsHub.HandleWebSocket())

	return r
}
